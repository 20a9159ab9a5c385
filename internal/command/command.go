// Package command разбирает входящие сообщения и callback-данные бота
// в закрытый набор команд. Каждое сообщение разбирается ровно один раз.
package command

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/validation"
)

// Тексты кнопок главного меню.
const (
	ButtonBalance      = "💰 Balans"
	ButtonReferrals    = "👥 Referallar"
	ButtonReferralLink = "🔗 Referal havola"
	ButtonWithdraw     = "💸 Pul yechib olish"
	ButtonContactAdmin = "📞 Admin bilan aloqa"
)

// Тексты кнопок панели администратора.
const (
	ButtonUsers         = "👥 Foydalanuvchilar"
	ButtonChangeBalance = "💰 Balansni o'zgartirish"
	ButtonStats         = "📊 Statistika"
	ButtonSettings      = "⚙️ Sozlamalar"
	ButtonBroadcast     = "📢 Xabar yuborish"
	ButtonChannels      = "📺 Homiy kanallar"
	ButtonBack          = "⬅️ Orqaga"
)

// Screen определяет экран, который нужно показать пользователю.
type Screen int

const (
	ScreenMain Screen = iota
	ScreenBalance
	ScreenReferrals
	ScreenReferralLink
	ScreenWithdraw
	ScreenContactAdmin
	ScreenAdminPanel
	ScreenUsers
	ScreenChangeBalance
	ScreenStats
	ScreenSettings
	ScreenBroadcastHelp
	ScreenChannels
	ScreenSweep
)

// ChannelAction определяет операцию над списком спонсорских каналов.
type ChannelAction int

const (
	ChannelAdd ChannelAction = iota + 1
	ChannelRemove
	ChannelClear
)

// Setting определяет изменяемую настройку.
type Setting int

const (
	SettingReferralReward Setting = iota + 1
	SettingMinimumWithdrawal
)

// Command - разобранное входящее сообщение.
type Command interface {
	command()
}

// Start - команда /start с необязательным параметром приглашения.
type Start struct {
	Param string
}

// Menu - переход на экран меню.
type Menu struct {
	Screen Screen
}

// SubmitWithdrawal - заявка на вывод: номер карты и сумма.
type SubmitWithdrawal struct {
	Card   string
	Amount int64
}

// MalformedWithdrawal - текст, похожий на заявку на вывод, но не разобранный как карта и сумма.
type MalformedWithdrawal struct {
	Text string
}

// AdjustBalance - ручная корректировка баланса администратором.
type AdjustBalance struct {
	UserID int64
	Delta  int64
}

// ChannelOp - изменение списка спонсорских каналов.
type ChannelOp struct {
	Action  ChannelAction
	Channel string
}

// SetSetting - изменение числовой настройки.
type SetSetting struct {
	Setting Setting
	Value   int64
}

// Broadcast - рассылка текста всем пользователям.
type Broadcast struct {
	Text string
}

// Unknown - сообщение, не распознанное как команда.
type Unknown struct {
	Text string
}

func (Start) command()               {}
func (Menu) command()                {}
func (SubmitWithdrawal) command()    {}
func (MalformedWithdrawal) command() {}
func (AdjustBalance) command()       {}
func (ChannelOp) command()           {}
func (SetSetting) command()          {}
func (Broadcast) command()           {}
func (Unknown) command()             {}

var adjustPattern = regexp.MustCompile(`^(\d+) ([+-]\d+)$`)

var userScreens = map[string]Screen{
	ButtonBalance:      ScreenBalance,
	ButtonReferrals:    ScreenReferrals,
	ButtonReferralLink: ScreenReferralLink,
	ButtonWithdraw:     ScreenWithdraw,
	ButtonContactAdmin: ScreenContactAdmin,
}

var adminScreens = map[string]Screen{
	"/admin":            ScreenAdminPanel,
	"/users":            ScreenUsers,
	"/check_all":        ScreenSweep,
	ButtonUsers:         ScreenUsers,
	ButtonChangeBalance: ScreenChangeBalance,
	ButtonStats:         ScreenStats,
	ButtonSettings:      ScreenSettings,
	ButtonBroadcast:     ScreenBroadcastHelp,
	ButtonChannels:      ScreenChannels,
	ButtonBack:          ScreenAdminPanel,
}

// Parse разбирает текст сообщения. Набор доступных команд зависит от isAdmin.
func Parse(text string, isAdmin bool) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown{}
	}

	if name, arg, ok := splitCommand(text); ok && name == "/start" {
		return Start{Param: arg}
	}

	if screen, ok := userScreens[text]; ok {
		return Menu{Screen: screen}
	}

	if isAdmin {
		return parseAdmin(text)
	}

	if text == "/admin" {
		return Menu{Screen: ScreenContactAdmin}
	}

	if cmd, ok := parseWithdrawal(text); ok {
		return cmd
	}

	return Unknown{Text: text}
}

func parseAdmin(text string) Command {
	if screen, ok := adminScreens[text]; ok {
		return Menu{Screen: screen}
	}

	if m := adjustPattern.FindStringSubmatch(text); m != nil {
		userID, err1 := strconv.ParseInt(m[1], 10, 64)
		delta, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 == nil && err2 == nil {
			return AdjustBalance{UserID: userID, Delta: delta}
		}
		return Unknown{Text: text}
	}

	name, arg, ok := splitCommand(text)
	if !ok {
		return Unknown{Text: text}
	}

	switch name {
	case "/addchannel":
		if arg != "" {
			return ChannelOp{Action: ChannelAdd, Channel: arg}
		}
	case "/removechannel":
		if arg != "" {
			return ChannelOp{Action: ChannelRemove, Channel: arg}
		}
	case "/clearchannels":
		return ChannelOp{Action: ChannelClear}
	case "/broadcast":
		if arg != "" {
			return Broadcast{Text: arg}
		}
	case "/setreward":
		if v, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return SetSetting{Setting: SettingReferralReward, Value: v}
		}
	case "/setminimum":
		if v, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return SetSetting{Setting: SettingMinimumWithdrawal, Value: v}
		}
	}

	return Unknown{Text: text}
}

// minCardDigits - число цифр, начиная с которого текст считается попыткой заявки на вывод.
const minCardDigits = 12

// parseWithdrawal принимает два формата: карта и сумма на разных строках,
// либо одна строка, где последнее слово - сумма. В номере карты допускаются пробелы и дефисы.
// Текст, первая часть которого похожа на номер карты, но не разбирается, возвращается как MalformedWithdrawal.
func parseWithdrawal(text string) (Command, bool) {
	var card, amount string

	if lines := strings.Split(text, "\n"); len(lines) >= 2 {
		card = validation.NormalizeCardNumber(strings.TrimSpace(lines[0]))
		amount = strings.ReplaceAll(strings.TrimSpace(lines[1]), " ", "")
	} else {
		fields := strings.Fields(text)
		if len(fields) == 1 {
			card = validation.NormalizeCardNumber(fields[0])
		} else {
			card = validation.NormalizeCardNumber(strings.Join(fields[:len(fields)-1], ""))
			amount = fields[len(fields)-1]
		}
	}

	if validation.IsDigits(card) && validation.IsDigits(amount) {
		v, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return MalformedWithdrawal{Text: text}, true
		}
		return SubmitWithdrawal{Card: card, Amount: v}, true
	}

	if looksLikeCard(card) {
		return MalformedWithdrawal{Text: text}, true
	}

	return nil, false
}

// looksLikeCard сообщает, что строка в основном состоит из цифр и их достаточно для номера карты.
func looksLikeCard(s string) bool {
	var digits, total int
	for _, r := range s {
		total++
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minCardDigits && digits*4 >= total*3
}

func splitCommand(text string) (name, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text, " ")
	// /start@botname
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}
