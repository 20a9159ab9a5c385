package subscription

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MemberGetter покрывает метод GetChatMember клиента Telegram.
type MemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// TelegramOracle проверяет членство через метод getChatMember Bot API.
type TelegramOracle struct {
	api MemberGetter
}

// NewTelegramOracle создаёт TelegramOracle.
func NewTelegramOracle(api MemberGetter) *TelegramOracle {
	return &TelegramOracle{api: api}
}

// IsMember проверяет членство пользователя в канале. Канал задаётся как "@name" или числовой идентификатор.
func (o *TelegramOracle) IsMember(ctx context.Context, userID int64, channel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := o.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: chatConfig(channel, userID),
	})
	if err != nil {
		return false, fmt.Errorf("get chat member %s: %w", channel, err)
	}

	return isMemberStatus(member), nil
}

func chatConfig(channel string, userID int64) tgbotapi.ChatConfigWithUser {
	if strings.HasPrefix(channel, "-") {
		if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
			return tgbotapi.ChatConfigWithUser{ChatID: id, UserID: userID}
		}
	}
	return tgbotapi.ChatConfigWithUser{SuperGroupUsername: channel, UserID: userID}
}

func isMemberStatus(m tgbotapi.ChatMember) bool {
	switch m.Status {
	case "member", "administrator", "creator":
		return true
	case "restricted":
		return m.IsMember
	default:
		return false
	}
}
