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
package session

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors shared by the sessions of a process.
type Metrics struct {
	received       *prometheus.CounterVec
	sent           *prometheus.CounterVec
	rejects        *prometheus.CounterVec
	resendRequests *prometheus.CounterVec
	resent         *prometheus.CounterVec
	gapFills       *prometheus.CounterVec
	status         *prometheus.GaugeVec
}

// NewMetrics registers the session collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		received: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "messages_received_total",
			Help:      "Messages received by session and MsgType",
		}, []string{"session", "msg_type"}),
		sent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "messages_sent_total",
			Help:      "Messages sent by session and MsgType",
		}, []string{"session", "msg_type"}),
		rejects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "rejects_sent_total",
			Help:      "Session level rejects sent by reason",
		}, []string{"session", "reason"}),
		resendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "resend_requests_sent_total",
			Help:      "ResendRequests sent",
		}, []string{"session"}),
		resent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "messages_resent_total",
			Help:      "Messages resent in answer to ResendRequests",
		}, []string{"session"}),
		gapFills: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "gap_fills_sent_total",
			Help:      "SequenceReset-GapFill messages sent",
		}, []string{"session"}),
		status: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fixengine",
			Subsystem: "session",
			Name:      "status",
			Help:      "Current session status (0 Disconnected .. 4 LogoutPending)",
		}, []string{"session"}),
	}
}

// sessionMetrics binds Metrics to one session label. A nil receiver records nothing.
type sessionMetrics struct {
	m     *Metrics
	label string
}

func (sm sessionMetrics) received(msgType string) {
	if sm.m != nil {
		sm.m.received.WithLabelValues(sm.label, msgType).Inc()
	}
}

func (sm sessionMetrics) sent(msgType string) {
	if sm.m != nil {
		sm.m.sent.WithLabelValues(sm.label, msgType).Inc()
	}
}

func (sm sessionMetrics) reject(reason int) {
	if sm.m != nil {
		sm.m.rejects.WithLabelValues(sm.label, strconv.Itoa(reason)).Inc()
	}
}

func (sm sessionMetrics) resendRequest() {
	if sm.m != nil {
		sm.m.resendRequests.WithLabelValues(sm.label).Inc()
	}
}

func (sm sessionMetrics) resent() {
	if sm.m != nil {
		sm.m.resent.WithLabelValues(sm.label).Inc()
	}
}

func (sm sessionMetrics) gapFill() {
	if sm.m != nil {
		sm.m.gapFills.WithLabelValues(sm.label).Inc()
	}
}

func (sm sessionMetrics) status(s Status) {
	if sm.m != nil {
		sm.m.status.WithLabelValues(sm.label).Set(float64(s))
	}
}
