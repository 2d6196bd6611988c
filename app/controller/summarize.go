package controller

import (
	"net/http"

	httpdto "github.com/breviobot/breviobot-service/app/dto/http"
	"github.com/breviobot/breviobot-service/app/identity"
	"github.com/breviobot/breviobot-service/app/metrics"
	"github.com/breviobot/breviobot-service/app/summarizer"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type SummarizeController struct {
	summarizer     summarizer.Summarizer
	maxInputLength int
}

func NewSummarizeController(s summarizer.Summarizer, maxInputLength int) *SummarizeController {
	return &SummarizeController{summarizer: s, maxInputLength: maxInputLength}
}

func (c *SummarizeController) Summarize(ctx echo.Context, caller identity.Identity) error {
	var req httpdto.SummarizeRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind summarize request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}
	if err := req.Validate(c.maxInputLength); err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	entry := logrus.WithFields(logrus.Fields{
		"user_id":    caller.UserID,
		"username":   caller.Username,
		"text_runes": len([]rune(req.Text)),
	})
	summary, err := c.summarizer.Summarize(ctx.Request().Context(), summarizer.Request{
		Text:     req.Text,
		Language: req.Language,
		Model:    req.Model,
	})
	metrics.SummariesTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return respondError(ctx, err, entry)
	}

	entry.Info("Summary generated")
	return ctx.JSON(http.StatusOK, httpdto.SummarizeResponse{Summary: summary})
}
