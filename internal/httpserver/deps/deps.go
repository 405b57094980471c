package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/identity"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/metrics"
	"github.com/MrSnakeDoc/linkhub/internal/profiles"
	"github.com/MrSnakeDoc/linkhub/internal/utils"
)

type Deps struct {
	Logger            logger.Logger
	StartTime         time.Time
	Version           string
	Commit            string
	BuildDate         string
	GoVersion         string
	TimeNow           func() time.Time   // for testing, defaults to time.Now
	Profiles          *profiles.Store    // profile persistence adapter
	Verifier          *identity.Verifier // session token verifier (nil: everyone is anonymous)
	Metrics           *metrics.Metrics   // nil disables /metrics
	Locks             *utils.KeyedMutex  // serializes mutations per username
	NewLinkID         domain.IDGenerator // for testing, defaults to domain.NewLinkID
	RedisClient       *redis.Client      // nil when the cache is disabled
	AllowedOrigins    []string           // CORS origins for browser clients
	AllowedHosts      []string           // Host headers allowed to reach ops endpoints
	AllowedCIDRS      []string           // IPs allowed to access readyz/metrics/reload
	TrustProxy        bool               // true if running behind a trusted reverse proxy
	CreateBurst       int                // profile creations allowed at once per caller
	CreatePerMin      int                // profile creation refill rate per caller
	MaxBodyBytes      int64              // request body cap for JSON endpoints
	SeedReloadTrigger chan struct{}      // manual seed reload (nil when no seed file)
}
