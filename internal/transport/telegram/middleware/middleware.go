package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			now := time.Now()

			rqID := uuid.NewString()
			c.Set("rqID", rqID)

			var chatID int64
			if c.Chat() != nil {
				chatID = c.Chat().ID
			}

			slog.Info(
				"start request",
				slog.String("rqID", rqID),
				slog.Int64("chatID", chatID),
				slog.String("text", c.Text()),
				slog.String("callback", c.Data()),
			)

			defer func() {
				slog.Info(
					"request finished",
					slog.String("rqID", rqID),
					slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
				)
			}()

			err := next(c)
			if err != nil {
				slog.Error("request failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
			}
			return err
		}
	}
}

// Whitelist drops updates from chats that are not allowed. An empty list allows everyone.
func Whitelist(chatIDs []int64) tele.MiddlewareFunc {
	allowed := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = struct{}{}
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if len(allowed) == 0 {
				return next(c)
			}
			if c.Chat() == nil {
				return nil
			}
			if _, ok := allowed[c.Chat().ID]; !ok {
				slog.Warn("update from unknown chat dropped", slog.Any("rqID", c.Get("rqID")), slog.Int64("chatID", c.Chat().ID))
				return nil
			}
			return next(c)
		}
	}
}
