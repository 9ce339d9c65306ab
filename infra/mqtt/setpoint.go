package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/kilianp07/heatdispatch/core/factory"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Setpoint is the payload sent to a source for one period.
type Setpoint struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	HeatMW      float64   `json:"heat_mw"`
	Engaged     bool      `json:"engaged"`
	Rank        int       `json:"rank"`
	Price       float64   `json:"electricity_price"`
}

// SetpointSink publishes a setpoint per source and period to
// <prefix>/<source>/setpoint. Idle sources receive a zero setpoint.
type SetpointSink struct {
	pub    Publisher
	prefix string
	closer func()
}

// NewSetpointSink wraps pub. Topics start with prefix.
func NewSetpointSink(pub Publisher, prefix string) *SetpointSink {
	if prefix == "" {
		prefix = "heat"
	}
	return &SetpointSink{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// SetpointTopic returns the topic of a source.
func (s *SetpointSink) SetpointTopic(source string) string {
	return s.prefix + "/" + topicSegment(source) + "/setpoint"
}

// ShortfallTopic returns the topic receiving shortfall alerts.
func (s *SetpointSink) ShortfallTopic() string { return s.prefix + "/alerts/shortfall" }

// RecordAllocations publishes the setpoints of every period in order. All
// publishes are attempted; failures are joined.
func (s *SetpointSink) RecordAllocations(evs []coremetrics.AllocationEvent) error {
	var errs []error
	for _, ev := range evs {
		r := ev.Result
		for _, a := range r.Allocations {
			payload, err := json.Marshal(Setpoint{
				RunID:       ev.RunID,
				Source:      a.Source,
				PeriodStart: r.Period.TimeFrom,
				PeriodEnd:   r.Period.TimeTo,
				HeatMW:      a.HeatMW,
				Engaged:     a.Engaged,
				Rank:        a.Rank,
				Price:       r.Period.ElectricityPrice,
			})
			if err != nil {
				return err
			}
			if err := s.pub.Publish(s.SetpointTopic(a.Source), payload); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordShortfall publishes an alert for a period with unmet demand.
func (s *SetpointSink) RecordShortfall(ev coremetrics.ShortfallEvent) error {
	payload, err := json.Marshal(struct {
		RunID       string    `json:"run_id"`
		PeriodStart time.Time `json:"period_start"`
		UnmetMW     float64   `json:"unmet_mw"`
		Reason      string    `json:"reason"`
	}{ev.RunID, ev.Period.TimeFrom, ev.Shortfall.UnmetDemand, string(ev.Shortfall.Reason)})
	if err != nil {
		return err
	}
	return s.pub.Publish(s.ShortfallTopic(), payload)
}

// Close disconnects the underlying client when the sink owns it.
func (s *SetpointSink) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

// topicSegment strips characters with a meaning in MQTT topic filters.
func topicSegment(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '_'
		}
		return r
	}, name)
}

func init() {
	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		cli, err := NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		c.SetDefaults()
		sink := NewSetpointSink(cli, c.TopicPrefix)
		sink.closer = cli.Disconnect
		return sink, nil
	})
}
