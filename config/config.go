/*
fixengine — FIX protocol engine
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/

// Package config loads session settings from a YAML file with viper.
//
// A file has a default block that every session inherits, a list of
// sessions that override it, and the process wide store and log sections:
//
//	default:
//	  begin_string: FIX.4.4
//	  heartbeat_interval: 30s
//	sessions:
//	  - sender_comp_id: ISLD
//	    target_comp_id: TW
//	store:
//	  type: badger
//	  path: /var/lib/fixengine
//	log:
//	  obfuscate: true
//
// Keys of the default, store and log sections can be overridden from the
// environment, e.g. FIXENGINE_DEFAULT_HEARTBEAT_INTERVAL=45s.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // time_zone must resolve on hosts without zoneinfo

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
	"github.com/stephenlclarke/fixengine/session"
	"github.com/stephenlclarke/fixengine/sessionlog"
	"github.com/stephenlclarke/fixengine/store"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "FIXENGINE"

// ConfigError reports settings that cannot be used.
type ConfigError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Source == "" {
		return "config: " + msg
	}
	return fmt.Sprintf("config %s: %s", e.Source, msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is a loaded configuration file.
type Config struct {
	Sessions []session.Settings
	Store    StoreConfig
	Log      LogConfig
}

// StoreConfig selects the message store shared by all sessions.
type StoreConfig struct {
	Type     string // memory, badger, sql or redis
	Path     string // badger directory
	DSN      string // sqlite dsn
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// LogConfig controls masking of sensitive tags in session logs.
type LogConfig struct {
	Obfuscate     bool
	SensitiveTags []int
}

// sessionConfig mirrors the per session keys of the file.
type sessionConfig struct {
	BeginString      string `mapstructure:"begin_string"`
	SenderCompID     string `mapstructure:"sender_comp_id"`
	SenderSubID      string `mapstructure:"sender_sub_id"`
	SenderLocationID string `mapstructure:"sender_location_id"`
	TargetCompID     string `mapstructure:"target_comp_id"`
	TargetSubID      string `mapstructure:"target_sub_id"`
	TargetLocationID string `mapstructure:"target_location_id"`
	Qualifier        string `mapstructure:"session_qualifier"`
	ConnectionType   string `mapstructure:"connection_type"`

	HeartBtInt    time.Duration `mapstructure:"heartbeat_interval"`
	LogonTimeout  time.Duration `mapstructure:"logon_timeout"`
	LogoutTimeout time.Duration `mapstructure:"logout_timeout"`

	CheckCompID  bool          `mapstructure:"check_comp_id"`
	CheckLatency bool          `mapstructure:"check_latency"`
	MaxLatency   time.Duration `mapstructure:"max_latency"`

	ResetOnLogon      bool `mapstructure:"reset_on_logon"`
	ResetOnLogout     bool `mapstructure:"reset_on_logout"`
	ResetOnDisconnect bool `mapstructure:"reset_on_disconnect"`
	RefreshOnLogon    bool `mapstructure:"refresh_on_logon"`

	ValidateSequenceNumbers     bool `mapstructure:"validate_sequence_numbers"`
	PersistMessages             bool `mapstructure:"persist_messages"`
	RequiresOrigSendingTime     bool `mapstructure:"requires_orig_sending_time"`
	SendRedundantResendRequests bool `mapstructure:"send_redundant_resend_requests"`
	ClosedResendInterval        bool `mapstructure:"closed_resend_interval"`

	DataDictionary            string `mapstructure:"data_dictionary"`
	ValidateFieldsOutOfOrder  bool   `mapstructure:"validate_fields_out_of_order"`
	ValidateFieldsHaveValues  bool   `mapstructure:"validate_fields_have_values"`
	ValidateUserDefinedFields bool   `mapstructure:"validate_user_defined_fields"`
	AllowUnknownMessageFields bool   `mapstructure:"allow_unknown_message_fields"`

	StartTime      string `mapstructure:"start_time"`
	EndTime        string `mapstructure:"end_time"`
	StartDay       string `mapstructure:"start_day"`
	EndDay         string `mapstructure:"end_day"`
	TimeZone       string `mapstructure:"time_zone"`
	NonStopSession bool   `mapstructure:"non_stop_session"`

	TimestampPrecision string `mapstructure:"timestamp_precision"`
	DefaultApplVerID   string `mapstructure:"default_appl_ver_id"`
}

// defaults returns the value of every session key when nothing is configured.
func defaults() map[string]any {
	d := session.DefaultSettings()
	v := d.Validation
	return map[string]any{
		"begin_string":                   "",
		"sender_comp_id":                 "",
		"sender_sub_id":                  "",
		"sender_location_id":             "",
		"target_comp_id":                 "",
		"target_sub_id":                  "",
		"target_location_id":             "",
		"session_qualifier":              "",
		"connection_type":                d.ConnectionType.String(),
		"heartbeat_interval":             d.HeartBtInt,
		"logon_timeout":                  d.LogonTimeout,
		"logout_timeout":                 d.LogoutTimeout,
		"check_comp_id":                  d.CheckCompID,
		"check_latency":                  d.CheckLatency,
		"max_latency":                    d.MaxLatency,
		"reset_on_logon":                 d.ResetOnLogon,
		"reset_on_logout":                d.ResetOnLogout,
		"reset_on_disconnect":            d.ResetOnDisconnect,
		"refresh_on_logon":               d.RefreshOnLogon,
		"validate_sequence_numbers":      d.ValidateSequenceNumbers,
		"persist_messages":               d.PersistMessages,
		"requires_orig_sending_time":     d.RequiresOrigSendingTime,
		"send_redundant_resend_requests": d.SendRedundantResendRequests,
		"closed_resend_interval":         d.ClosedResendInterval,
		"data_dictionary":                "",
		"validate_fields_out_of_order":   v.CheckFieldsOutOfOrder,
		"validate_fields_have_values":    v.CheckFieldsHaveValues,
		"validate_user_defined_fields":   v.CheckUserDefinedFields,
		"allow_unknown_message_fields":   v.AllowUnknownMessageFields,
		"start_time":                     "",
		"end_time":                       "",
		"start_day":                      "",
		"end_day":                        "",
		"time_zone":                      "UTC",
		"non_stop_session":               false,
		"timestamp_precision":            "millis",
		"default_appl_ver_id":            "",
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults() {
		v.SetDefault("default."+key, value)
	}
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.addr", "localhost:6379")
	v.SetDefault("store.password", "")
	v.SetDefault("store.db", 0)
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("log.obfuscate", false)
	v.SetDefault("log.sensitive_tags", []int{})
	return v
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Source: path, Reason: "cannot read file", Err: err}
	}
	cfg, err := load(v)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) && ce.Source == "" {
			ce.Source = path
		}
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	// Keys are read one by one so that defaults and environment overrides
	// apply to each of them.
	cfg := Config{
		Store: StoreConfig{
			Type:     v.GetString("store.type"),
			Path:     v.GetString("store.path"),
			DSN:      v.GetString("store.dsn"),
			Addr:     v.GetString("store.addr"),
			Password: v.GetString("store.password"),
			DB:       v.GetInt("store.db"),
			Timeout:  v.GetDuration("store.timeout"),
		},
		Log: LogConfig{
			Obfuscate:     v.GetBool("log.obfuscate"),
			SensitiveTags: v.GetIntSlice("log.sensitive_tags"),
		},
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}

	base := make(map[string]any)
	for key := range defaults() {
		base[key] = v.Get("default." + key)
	}

	raw, ok := v.Get("sessions").([]any)
	if !ok || len(raw) == 0 {
		return nil, &ConfigError{Reason: "no sessions configured"}
	}
	seen := make(map[fix.SessionID]int)
	for i, entry := range raw {
		overrides, ok := entry.(map[string]any)
		if !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("session %d is not a map", i+1)}
		}
		settings, err := decodeSession(base, overrides)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("session %d", i+1), Err: err}
		}
		if prev, dup := seen[settings.SessionID]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("session %d duplicates session %d (%s)", i+1, prev, settings.SessionID)}
		}
		seen[settings.SessionID] = i + 1
		cfg.Sessions = append(cfg.Sessions, settings)
	}
	return &cfg, nil
}

var durationKeys = []string{"heartbeat_interval", "logon_timeout", "logout_timeout", "max_latency"}

// withSeconds copies m, reading bare numbers under duration keys as seconds.
func withSeconds(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	for _, k := range durationKeys {
		switch n := out[k].(type) {
		case int:
			out[k] = time.Duration(n) * time.Second
		case int64:
			out[k] = time.Duration(n) * time.Second
		case float64:
			out[k] = time.Duration(n * float64(time.Second))
		}
	}
	return out
}

func decodeSession(base, overrides map[string]any) (session.Settings, error) {
	sv := viper.New()
	if err := sv.MergeConfigMap(withSeconds(base)); err != nil {
		return session.Settings{}, err
	}
	if err := sv.MergeConfigMap(withSeconds(overrides)); err != nil {
		return session.Settings{}, err
	}
	var sc sessionConfig
	if err := sv.Unmarshal(&sc); err != nil {
		return session.Settings{}, err
	}
	return sc.settings()
}

func (sc *sessionConfig) settings() (session.Settings, error) {
	s := session.DefaultSettings()
	s.SessionID = fix.SessionID{
		BeginString:      sc.BeginString,
		SenderCompID:     sc.SenderCompID,
		SenderSubID:      sc.SenderSubID,
		SenderLocationID: sc.SenderLocationID,
		TargetCompID:     sc.TargetCompID,
		TargetSubID:      sc.TargetSubID,
		TargetLocationID: sc.TargetLocationID,
		Qualifier:        sc.Qualifier,
	}

	ct, err := session.ParseConnectionType(strings.ToLower(sc.ConnectionType))
	if err != nil {
		return s, err
	}
	s.ConnectionType = ct

	s.HeartBtInt = sc.HeartBtInt
	s.LogonTimeout = sc.LogonTimeout
	s.LogoutTimeout = sc.LogoutTimeout
	s.CheckCompID = sc.CheckCompID
	s.CheckLatency = sc.CheckLatency
	s.MaxLatency = sc.MaxLatency
	s.ResetOnLogon = sc.ResetOnLogon
	s.ResetOnLogout = sc.ResetOnLogout
	s.ResetOnDisconnect = sc.ResetOnDisconnect
	s.RefreshOnLogon = sc.RefreshOnLogon
	s.ValidateSequenceNumbers = sc.ValidateSequenceNumbers
	s.PersistMessages = sc.PersistMessages
	s.RequiresOrigSendingTime = sc.RequiresOrigSendingTime
	s.SendRedundantResendRequests = sc.SendRedundantResendRequests
	s.ClosedResendInterval = sc.ClosedResendInterval
	s.DefaultApplVerID = sc.DefaultApplVerID

	s.Validation = datadictionary.ValidationSettings{
		CheckFieldsOutOfOrder:     sc.ValidateFieldsOutOfOrder,
		CheckFieldsHaveValues:     sc.ValidateFieldsHaveValues,
		CheckUserDefinedFields:    sc.ValidateUserDefinedFields,
		AllowUnknownMessageFields: sc.AllowUnknownMessageFields,
	}
	if sc.DataDictionary != "" {
		dd, err := datadictionary.Resolve(sc.DataDictionary)
		if err != nil {
			return s, err
		}
		s.Dictionary = dd
	}

	if s.TimestampPrecision, err = parsePrecision(sc.TimestampPrecision); err != nil {
		return s, err
	}
	if s.Schedule, err = sc.schedule(); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func parsePrecision(p string) (fix.TimestampPrecision, error) {
	switch strings.ToLower(p) {
	case "seconds", "0":
		return fix.Seconds, nil
	case "millis", "3", "":
		return fix.Millis, nil
	case "micros", "6":
		return fix.Micros, nil
	case "nanos", "9":
		return fix.Nanos, nil
	}
	return fix.Millis, fmt.Errorf("unknown timestamp precision %q", p)
}

// schedule is nil when neither a window nor non_stop_session is configured.
func (sc *sessionConfig) schedule() (*session.Schedule, error) {
	if sc.NonStopSession {
		return session.NonStopSchedule(), nil
	}
	if sc.StartTime == "" && sc.EndTime == "" {
		return nil, nil
	}
	if sc.StartTime == "" || sc.EndTime == "" {
		return nil, errors.New("start_time and end_time must be set together")
	}
	start, err := session.ParseTimeOfDay(sc.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := session.ParseTimeOfDay(sc.EndTime)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(sc.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone: %w", err)
	}

	switch {
	case sc.StartDay == "" && sc.EndDay == "":
		return session.NewDailySchedule(start, end, loc), nil
	case sc.StartDay == "" || sc.EndDay == "":
		return nil, errors.New("start_day and end_day must be set together")
	}
	startDay, err := session.ParseWeekday(sc.StartDay)
	if err != nil {
		return nil, err
	}
	endDay, err := session.ParseWeekday(sc.EndDay)
	if err != nil {
		return nil, err
	}
	return session.NewWeeklySchedule(startDay, start, endDay, end, loc), nil
}

func (sc StoreConfig) validate() error {
	switch sc.Type {
	case "memory", "redis":
	case "badger":
		if sc.Path == "" {
			return &ConfigError{Reason: "store.path is required for the badger store"}
		}
	case "sql":
		if sc.DSN == "" {
			return &ConfigError{Reason: "store.dsn is required for the sql store"}
		}
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown store type %q", sc.Type)}
	}
	return nil
}

// Open creates the configured store factory. The returned close function
// releases the underlying database or client.
func (sc StoreConfig) Open() (store.Factory, func() error, error) {
	nop := func() error { return nil }
	switch sc.Type {
	case "memory":
		return store.MemoryFactory{}, nop, nil
	case "badger":
		f, err := store.NewBadgerFactory(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	case "sql":
		f, err := store.OpenSQLite(sc.DSN)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: sc.Addr, Password: sc.Password, DB: sc.DB})
		f := store.NewRedisFactory(client, sc.Timeout)
		return f, f.Close, nil
	}
	return nil, nil, &ConfigError{Reason: fmt.Sprintf("unknown store type %q", sc.Type)}
}

// Obfuscator builds the masker for session logs. Without explicit tags the
// default sensitive set is used.
func (lc LogConfig) Obfuscator() *fix.Obfuscator {
	var tags map[int]string
	if len(lc.SensitiveTags) > 0 {
		tags = make(map[int]string, len(lc.SensitiveTags))
		for _, tag := range lc.SensitiveTags {
			name, ok := fix.DefaultSensitiveTags[tag]
			if !ok {
				name = "Tag" + strconv.Itoa(tag)
			}
			tags[tag] = name
		}
	}
	return fix.NewObfuscator(tags, lc.Obfuscate)
}

// Factory returns the session log factory writing to logger.
func (lc LogConfig) Factory(logger *zap.Logger) sessionlog.Factory {
	return sessionlog.NewZapFactory(logger, lc.Obfuscator())
}
