package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"medreminder/internal/infrastructure/line"
	"medreminder/internal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// LineHandler handles incoming LINE webhook events. It tells users the LINE
// ID to register as their notification target.
type LineHandler struct {
	lineClient *line.Client // Use the wrapper
	log        logger.Logger
}

// NewLineHandler creates a new LineHandler.
func NewLineHandler(lineClient *line.Client, log logger.Logger) *LineHandler {
	return &LineHandler{
		lineClient: lineClient,
		log:        log,
	}
}

// HandleWebhook is the main entry point for webhook requests.
func (h *LineHandler) HandleWebhook(c echo.Context) error {
	events, err := h.lineClient.ParseRequest(c.Request())
	if err != nil {
		if errors.Is(err, linebot.ErrInvalidSignature) {
			h.log.Warn("Invalid LINE signature received")
			return c.String(http.StatusBadRequest, "Invalid signature")
		}
		h.log.Error("Failed to parse LINE webhook request", err)
		return c.String(http.StatusInternalServerError, "Error parsing request")
	}

	for _, event := range events {
		h.log.Info(fmt.Sprintf("Processing event type: %s", event.Type))
		switch event.Type {
		case linebot.EventTypeFollow:
			h.replyWithTarget(event)
		case linebot.EventTypeMessage:
			h.handleMessageEvent(event)
		default:
			h.log.Info(fmt.Sprintf("Unhandled event type: %s", event.Type))
		}
	}

	return c.String(http.StatusOK, "OK")
}

// handleMessageEvent answers the text "id" with the sender's target.
func (h *LineHandler) handleMessageEvent(event *linebot.Event) {
	message, ok := event.Message.(*linebot.TextMessage)
	if !ok {
		return
	}
	if strings.EqualFold(strings.TrimSpace(message.Text), "id") {
		h.replyWithTarget(event)
	}
}

func (h *LineHandler) replyWithTarget(event *linebot.Event) {
	target := eventTarget(event.Source)
	if target == "" {
		h.log.Warn("LINE event carries no source ID")
		return
	}
	text := fmt.Sprintf("Your notification target is %s\nUse it as notification_target when registering or adding medications.", target)
	if err := h.lineClient.SendMessages(event.ReplyToken, linebot.NewTextMessage(text)); err != nil {
		h.log.Error(fmt.Sprintf("Failed to reply to %s", target), err)
	}
}

// eventTarget picks the ID a push message to this source must use.
func eventTarget(source *linebot.EventSource) string {
	if source == nil {
		return ""
	}
	switch source.Type {
	case linebot.EventSourceTypeGroup:
		return source.GroupID
	case linebot.EventSourceTypeRoom:
		return source.RoomID
	default:
		return source.UserID
	}
}
