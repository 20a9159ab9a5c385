package bot

import (
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/command"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(command.ButtonBalance),
			tgbotapi.NewKeyboardButton(command.ButtonReferrals),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(command.ButtonReferralLink),
			tgbotapi.NewKeyboardButton(command.ButtonWithdraw),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(command.ButtonContactAdmin),
		),
	)
}

func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(command.ButtonUsers),
			tgbotapi.NewKeyboardButton(command.ButtonChangeBalance),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(command.ButtonStats),
			tgbotapi.NewKeyboardButton(command.ButtonSettings),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(command.ButtonBroadcast),
			tgbotapi.NewKeyboardButton(command.ButtonChannels),
		),
	)
}

// subscriptionKeyboard содержит ссылки на спонсорские каналы и кнопку повторной проверки.
func subscriptionKeyboard(channels []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels)+1)
	for _, ch := range channels {
		if link := channelURL(ch); link != "" {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("📺 "+ch, link),
			))
		}
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔍 Obunani tekshirish", command.CallbackCheckSubscription),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func referralKeyboard(link string, reward string) tgbotapi.InlineKeyboardMarkup {
	share := "https://t.me/share/url?" + url.Values{
		"url":  {link},
		"text": {"🎉 Referal bot orqali pul toping! 💰 Har bir referal uchun " + reward + " so'm"},
	}.Encode()

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Havolani nusxalash", command.CallbackCopyLink),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📤 Ulashish", share),
		),
	)
}

// channelURL возвращает публичную ссылку на канал. Для числовых идентификаторов ссылки нет.
func channelURL(channel string) string {
	if !strings.HasPrefix(channel, "@") {
		return ""
	}
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}
