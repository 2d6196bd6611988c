package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	SignupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breviobot_signups_total",
		Help: "The total number of signup attempts by outcome",
	}, []string{"status"})

	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breviobot_email_verifications_total",
		Help: "The total number of verification token redemptions by outcome",
	}, []string{"status"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breviobot_login_attempts_total",
		Help: "The total number of login attempts by outcome",
	}, []string{"status"})

	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breviobot_token_refresh_total",
		Help: "The total number of access token refreshes by outcome",
	}, []string{"status"})

	AuthRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breviobot_auth_rejections_total",
		Help: "The total number of protected calls rejected, by reason",
	}, []string{"reason"})

	SummariesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breviobot_summaries_total",
		Help: "The total number of summarization requests by outcome",
	}, []string{"status"})
)

// Outcome maps an error to the status label.
func Outcome(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
