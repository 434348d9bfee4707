// Package httpapi exposes a local, read-only status surface for the
// running client: the reconciled roster, the chat log and the admin
// poller's last room listing.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/domain"
)

// participantView flattens a roster entry for JSON; track handles are
// reported by presence only.
type participantView struct {
	ID         domain.Identity `json:"id"`
	Name       string          `json:"name"`
	IsLocal    bool            `json:"isLocal"`
	HasVideo   bool            `json:"hasVideo"`
	HasAudio   bool            `json:"hasAudio"`
	VideoMuted bool            `json:"videoMuted"`
	AudioMuted bool            `json:"audioMuted"`
	PingMs     *int            `json:"pingMs,omitempty"`
}

func SetupRouter(cfg *config.Config, ctrl *app.Controller, rooms func() []domain.RoomInfo) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.httpapi").Msg("status router setup")

	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		snap := ctrl.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"role":          snap.Role,
			"name":          snap.Name,
			"roomId":        snap.RoomID,
			"status":        snap.Status,
			"localIdentity": snap.LocalIdentity,
			"micEnabled":    snap.MicEnabled,
			"camEnabled":    snap.CamEnabled,
			"participants": lo.Map(snap.Participants, func(p domain.Participant, _ int) participantView {
				return participantView{
					ID:         p.ID,
					Name:       p.Name,
					IsLocal:    p.IsLocal,
					HasVideo:   p.VideoTrack != nil,
					HasAudio:   p.AudioTrack != nil,
					VideoMuted: p.VideoMuted,
					AudioMuted: p.AudioMuted,
					PingMs:     p.PingMs,
				}
			}),
			"messages": snap.Messages,
		})
	})

	api.GET("/rooms", func(c *gin.Context) {
		if rooms == nil {
			c.JSON(http.StatusOK, gin.H{"rooms": []domain.RoomInfo{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms()})
	})

	return r
}
