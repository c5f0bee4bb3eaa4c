package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                                // ConnectionURL is the server URL, e.g. "redis://:password@localhost:6379/0".
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"stockline:"` // KeyPrefix namespaces every key written by the service.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`      // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`     // RetryInterval is the base backoff between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`   // ConnectTimeout bounds the whole connection procedure.
}
