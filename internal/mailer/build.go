package mailer

import (
	"time"

	"github.com/jmehdipour/topic-notifier/internal/config"
)

// FromConfig builds a Dispatcher over the enabled HTTP relays and SMTP server.
// It returns ErrNoHealthy when nothing is enabled.
func FromConfig(cfg config.MailConfig) (*Dispatcher, error) {
	var provs []Provider
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		provs = append(provs, NewHTTPProvider(
			pc.Name, pc.BaseURL, pc.Path, pc.APIKey,
			ms(pc.TimeoutMs),
			breakerFrom(pc.Breaker),
		))
	}

	if s := cfg.SMTP; s.Enabled {
		provs = append(provs, NewSMTPProvider("smtp", SMTPOptions{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			TLS:      s.TLS,
			Timeout:  ms(s.TimeoutMs),
		}, breakerFrom(s.Breaker)))
	}

	if len(provs) == 0 {
		return nil, ErrNoHealthy
	}
	return NewDispatcher(provs, cfg.Attempts), nil
}

func breakerFrom(c config.BreakerConfig) *Breaker {
	return NewBreaker(c.FailThreshold, ms(c.OpenForMs))
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
