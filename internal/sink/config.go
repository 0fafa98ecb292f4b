package sink

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/vitals.report/internal/config"
	"github.com/banshee-data/vitals.report/internal/monitoring"
)

// Environment variables consulted when a broker address is not given on
// the command line.
const (
	EnvMQTTBroker = "VITALS_MQTT_BROKER"
	EnvRedisAddr  = "VITALS_REDIS_ADDR"
	EnvNATSURL    = "VITALS_NATS_URL"
)

// Config selects and addresses the sinks. Empty addresses disable the
// corresponding sink.
type Config struct {
	Stdout     bool
	MQTTBroker string
	RedisAddr  string
	NATSURL    string

	MQTTTopic   string
	RedisStream string
	NATSSubject string

	// ClientID identifies this process to the MQTT broker.
	ClientID string
}

// ConfigFromTuning fills topic names from the tuning file.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Stdout:      true,
		MQTTTopic:   cfg.GetMQTTTopic(),
		RedisStream: cfg.GetRedisStream(),
		NATSSubject: cfg.GetNATSSubject(),
	}
}

// LoadFromEnv fills unset broker addresses from the environment.
func (c *Config) LoadFromEnv() {
	if c.MQTTBroker == "" {
		c.MQTTBroker = os.Getenv(EnvMQTTBroker)
	}
	if c.RedisAddr == "" {
		c.RedisAddr = os.Getenv(EnvRedisAddr)
	}
	if c.NATSURL == "" {
		c.NATSURL = os.Getenv(EnvNATSURL)
	}
}

// Open connects every configured sink. stdout receives the JSON-lines
// stream and extra sinks are appended last. Open owns extra: on error it
// closes them along with any sink already opened.
func Open(ctx context.Context, cfg Config, stdout io.Writer, extra ...Sink) (Multi, error) {
	var ms Multi
	fail := func(err error) (Multi, error) {
		ms.Close()
		Multi(extra).Close()
		return nil, err
	}

	if cfg.Stdout {
		ms = append(ms, NewWriter(stdout))
	}
	if cfg.MQTTBroker != "" {
		m, err := DialMQTT(MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.ClientID,
			Topic:    cfg.MQTTTopic,
			QoS:      1,
		})
		if err != nil {
			return fail(err)
		}
		ms = append(ms, m)
	}
	if cfg.RedisAddr != "" {
		r, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisStream)
		if err != nil {
			return fail(err)
		}
		ms = append(ms, r)
	}
	if cfg.NATSURL != "" {
		n, err := DialNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return fail(err)
		}
		ms = append(ms, n)
	}
	ms = append(ms, extra...)
	if len(ms) == 0 {
		return nil, fmt.Errorf("no sinks configured")
	}
	monitoring.Logf("[sink] publishing to %v", ms.Names())
	return ms, nil
}
