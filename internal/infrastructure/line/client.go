package line

import (
	"context"
	"fmt"
	"medreminder/internal/pkg/logger"
	"net/http"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// Client wraps the linebot.Client.
type Client struct {
	*linebot.Client
	log logger.Logger
}

// NewClient creates a LINE Bot client from channel credentials.
func NewClient(channelSecret, channelToken string, log logger.Logger, options ...linebot.ClientOption) (*Client, error) {
	if channelSecret == "" || channelToken == "" {
		return nil, fmt.Errorf("LINE channel secret and access token must be set")
	}

	bot, err := linebot.New(channelSecret, channelToken, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE Bot client: %w", err)
	}
	log.Info("Successfully created LINE Bot client.")
	return &Client{
		Client: bot,
		log:    log,
	}, nil
}

// SendMessages sends one or more messages using the ReplyMessage API.
func (c *Client) SendMessages(replyToken string, messages ...linebot.SendingMessage) error {
	_, err := c.ReplyMessage(replyToken, messages...).Do()
	if err != nil {
		return err // Return the error for the caller to handle
	}
	c.log.Debug("Successfully sent reply message.")
	return nil
}

// Send pushes a reminder to a LINE user, group or room ID. The call is bound to ctx.
func (c *Client) Send(ctx context.Context, target, title, body string) error {
	message := linebot.NewTextMessage(fmt.Sprintf("%s\n%s", title, body))
	if _, err := c.PushMessage(target, message).WithContext(ctx).Do(); err != nil {
		return err
	}
	c.log.Debug(fmt.Sprintf("Successfully pushed reminder to %s.", target))
	return nil
}

// ParseRequest parses incoming webhook requests.
func (c *Client) ParseRequest(r *http.Request) ([]*linebot.Event, error) {
	return c.Client.ParseRequest(r)
}
