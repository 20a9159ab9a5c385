package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/command"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/service"
)

const usersScreenLimit = 10

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}

	userID := msg.From.ID
	isAdmin := b.svc.IsAdmin(userID)

	if media, ok := mediaOf(msg); ok {
		if isAdmin {
			b.handleMediaBroadcast(ctx, msg.Chat.ID, userID, media, msg.Caption)
			return
		}
		b.reply(msg.Chat.ID, unknownText, mainKeyboard())
		return
	}

	switch cmd := command.Parse(msg.Text, isAdmin).(type) {
	case command.Start:
		b.handleStart(ctx, msg, cmd)
	case command.Menu:
		b.handleMenu(ctx, msg.Chat.ID, userID, isAdmin, cmd.Screen)
	case command.SubmitWithdrawal:
		b.handleWithdrawal(ctx, msg.Chat.ID, userID, cmd)
	case command.MalformedWithdrawal:
		b.reply(msg.Chat.ID, withdrawalFormatText, nil)
	case command.AdjustBalance:
		b.handleAdjustBalance(ctx, msg.Chat.ID, userID, cmd)
	case command.ChannelOp:
		b.handleChannelOp(msg.Chat.ID, userID, cmd)
	case command.SetSetting:
		b.handleSetSetting(msg.Chat.ID, userID, cmd)
	case command.Broadcast:
		b.handleBroadcast(ctx, msg.Chat.ID, userID, cmd)
	default:
		if isAdmin {
			b.reply(msg.Chat.ID, unknownAdminText, nil)
			return
		}
		b.reply(msg.Chat.ID, unknownText, mainKeyboard())
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, cmd command.Start) {
	reg, err := b.svc.RegisterUser(ctx, service.FirstContact{
		UserID:     msg.From.ID,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
		Username:   msg.From.UserName,
		StartParam: cmd.Param,
	})
	if err != nil {
		b.logger.Error("register user", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(msg.Chat.ID, failureText, nil)
		return
	}

	if reg.User.IsAdmin || b.svc.IsAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, adminWelcomeText(msg.From.FirstName), adminKeyboard())
		return
	}

	if !b.svc.Verified(ctx, msg.From.ID) {
		b.promptSubscription(msg.Chat.ID, notSubscribedText)
		return
	}

	settings := b.svc.Settings()
	link := ReferralLink(b.username, msg.From.ID)
	b.reply(msg.Chat.ID, welcomeText(msg.From.FirstName, reg.User, link, settings.ReferralReward()), mainKeyboard())
}

func (b *Bot) handleMenu(ctx context.Context, chatID, userID int64, isAdmin bool, screen command.Screen) {
	switch screen {
	case command.ScreenContactAdmin:
		b.reply(chatID, contactAdminText(b.svc.Settings().AdminUsername()), nil)
		return
	case command.ScreenBalance, command.ScreenReferrals, command.ScreenReferralLink, command.ScreenWithdraw:
		b.handleUserScreen(ctx, chatID, userID, isAdmin, screen)
		return
	}

	if !isAdmin {
		b.reply(chatID, unknownText, mainKeyboard())
		return
	}

	b.handleAdminScreen(ctx, chatID, userID, screen)
}

func (b *Bot) handleUserScreen(ctx context.Context, chatID, userID int64, isAdmin bool, screen command.Screen) {
	if !isAdmin && !b.svc.Verified(ctx, userID) {
		b.promptSubscription(chatID, notSubscribedText)
		return
	}

	u, ok := b.loadUser(ctx, chatID, userID)
	if !ok {
		return
	}

	settings := b.svc.Settings()

	switch screen {
	case command.ScreenBalance:
		b.reply(chatID, balanceText(u, settings.MinimumWithdrawal()), nil)

	case command.ScreenReferrals:
		refs, err := b.svc.ListReferrals(ctx, userID)
		if err != nil {
			b.fail(chatID, "list referrals", err)
			return
		}
		if len(refs) == 0 {
			b.reply(chatID, noReferralsText, nil)
			return
		}
		b.reply(chatID, referralsText(refs), nil)

	case command.ScreenReferralLink:
		b.sendReferralLink(chatID, userID, settings.ReferralReward())

	case command.ScreenWithdraw:
		minimum := settings.MinimumWithdrawal()
		if u.Balance < minimum {
			b.reply(chatID, lowBalanceText(u.Balance, minimum), nil)
			return
		}
		b.reply(chatID, withdrawInstructionsText(u.Balance, minimum), nil)
	}
}

func (b *Bot) sendReferralLink(chatID, userID, reward int64) {
	link := ReferralLink(b.username, userID)
	b.reply(chatID, referralLinkText(link, reward), referralKeyboard(link, model.FormatAmount(reward)))

	png, err := referralQR(link)
	if err != nil {
		b.logger.Warn("referral qr", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "referral.png", Bytes: png})
	photo.Caption = link
	b.send(photo)
}

func (b *Bot) handleAdminScreen(ctx context.Context, chatID, userID int64, screen command.Screen) {
	settings := b.svc.Settings()

	switch screen {
	case command.ScreenAdminPanel:
		b.reply(chatID, adminWelcomeText("admin"), adminKeyboard())

	case command.ScreenUsers:
		users, err := b.svc.ListUsers(ctx, usersScreenLimit)
		if err != nil {
			b.fail(chatID, "list users", err)
			return
		}
		if len(users) == 0 {
			b.reply(chatID, noUsersText, nil)
			return
		}
		b.reply(chatID, usersText(users), nil)

	case command.ScreenChangeBalance:
		b.reply(chatID, changeBalanceText, nil)

	case command.ScreenStats:
		stats, err := b.svc.Stats(ctx)
		if err != nil {
			b.fail(chatID, "stats", err)
			return
		}
		b.reply(chatID, statsText(stats), nil)

	case command.ScreenSettings:
		b.reply(chatID, settingsText(settings.ReferralReward(), settings.MinimumWithdrawal(), settings.SponsorChannels()), nil)

	case command.ScreenBroadcastHelp:
		b.reply(chatID, broadcastHelpText, nil)

	case command.ScreenChannels:
		b.reply(chatID, channelsText(settings.SponsorChannels()), nil)

	case command.ScreenSweep:
		b.reply(chatID, "🔄 Barcha foydalanuvchilarning obunasi tekshirilmoqda...", nil)
		report, err := b.svc.SweepSubscriptions(ctx)
		if err != nil {
			b.fail(chatID, "subscription sweep", err)
			return
		}
		b.reply(chatID, sweepText(report), nil)

	default:
		b.logger.Warn("unhandled admin screen", zap.Int("screen", int(screen)), zap.Int64("user_id", userID))
	}
}

func (b *Bot) handleWithdrawal(ctx context.Context, chatID, userID int64, cmd command.SubmitWithdrawal) {
	w, balance, err := b.svc.SubmitWithdrawal(ctx, userID, cmd.Amount, cmd.Card)
	if err == nil {
		b.reply(chatID, withdrawalSubmittedText(w, balance), nil)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		b.reply(chatID, "❌ Miqdor noto'g'ri!", nil)
	case errors.Is(err, service.ErrInvalidCardNumber):
		b.reply(chatID, "❌ Karta raqami noto'g'ri! 16-19 raqamdan iborat bo'lishi kerak.", nil)
	case errors.Is(err, service.ErrBelowMinimum):
		b.reply(chatID, fmt.Sprintf("❌ Minimal yechib olish miqdori %s so'm",
			model.FormatAmount(b.svc.Settings().MinimumWithdrawal())), nil)
	case errors.Is(err, service.ErrNotSubscribed):
		b.promptSubscription(chatID, "❌ Pul yechib olish uchun avval barcha homiy kanallarga obuna bo'ling!")
	case errors.Is(err, repository.ErrInsufficientBalance):
		var current int64
		if u, err := b.svc.GetUser(ctx, userID); err == nil {
			current = u.Balance
		}
		b.reply(chatID, insufficientBalanceText(current), nil)
	case errors.Is(err, repository.ErrUserNotFound):
		b.reply(chatID, notRegisteredText, nil)
	default:
		b.fail(chatID, "submit withdrawal", err)
	}
}

func (b *Bot) handleAdjustBalance(ctx context.Context, chatID, actorID int64, cmd command.AdjustBalance) {
	change, err := b.svc.AdjustBalance(ctx, actorID, cmd.UserID, cmd.Delta)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			b.reply(chatID, fmt.Sprintf("❌ Foydalanuvchi topilmadi: %d", cmd.UserID), nil)
		case errors.Is(err, repository.ErrInsufficientBalance):
			b.reply(chatID, "❌ Balans manfiy bo'lishi mumkin emas!", nil)
		case errors.Is(err, service.ErrInvalidAmount):
			b.reply(chatID, "❌ O'zgarish nolga teng bo'lishi mumkin emas!", nil)
		case errors.Is(err, service.ErrNotAdmin):
			b.reply(chatID, notAdminText, nil)
		default:
			b.fail(chatID, "adjust balance", err)
		}
		return
	}

	u, err := b.svc.GetUser(ctx, cmd.UserID)
	if err != nil {
		u = &model.User{ID: cmd.UserID}
	}
	b.reply(chatID, balanceAdjustedText(u, change), nil)
}

func (b *Bot) handleChannelOp(chatID, actorID int64, cmd command.ChannelOp) {
	var (
		text string
		err  error
	)

	switch cmd.Action {
	case command.ChannelAdd:
		var added bool
		added, err = b.svc.AddChannel(actorID, cmd.Channel)
		text = fmt.Sprintf("✅ Kanal qo'shildi: %s", config.NormalizeChannel(cmd.Channel))
		if !added {
			text = "ℹ️ Bu kanal allaqachon ro'yxatda."
		}
	case command.ChannelRemove:
		var removed bool
		removed, err = b.svc.RemoveChannel(actorID, cmd.Channel)
		text = fmt.Sprintf("✅ Kanal o'chirildi: %s", config.NormalizeChannel(cmd.Channel))
		if !removed {
			text = "ℹ️ Bunday kanal ro'yxatda yo'q."
		}
	case command.ChannelClear:
		err = b.svc.ClearChannels(actorID)
		text = channelsClearedText
	}

	if err != nil {
		b.settingError(chatID, "channel update", err)
		return
	}
	b.reply(chatID, text, nil)
}

func (b *Bot) handleSetSetting(chatID, actorID int64, cmd command.SetSetting) {
	var (
		text string
		err  error
	)

	switch cmd.Setting {
	case command.SettingReferralReward:
		err = b.svc.SetReferralReward(actorID, cmd.Value)
		text = fmt.Sprintf("✅ Referal mukofoti: %s so'm", model.FormatAmount(cmd.Value))
	case command.SettingMinimumWithdrawal:
		err = b.svc.SetMinimumWithdrawal(actorID, cmd.Value)
		text = fmt.Sprintf("✅ Minimal yechib olish: %s so'm", model.FormatAmount(cmd.Value))
	}

	if err != nil {
		b.settingError(chatID, "setting update", err)
		return
	}
	b.reply(chatID, text, nil)
}

func (b *Bot) handleBroadcast(ctx context.Context, chatID, actorID int64, cmd command.Broadcast) {
	n, err := b.svc.Broadcast(ctx, actorID, cmd.Text)
	if err != nil {
		if errors.Is(err, service.ErrNotAdmin) {
			b.reply(chatID, notAdminText, nil)
			return
		}
		b.fail(chatID, "broadcast", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("📢 Xabar navbatga qo'yildi: %d ta foydalanuvchi", n), nil)
}

func (b *Bot) handleMediaBroadcast(ctx context.Context, chatID, actorID int64, media model.Media, caption string) {
	n, err := b.svc.BroadcastMedia(ctx, actorID, media, caption)
	if err != nil {
		if errors.Is(err, service.ErrNotAdmin) {
			b.reply(chatID, notAdminText, nil)
			return
		}
		b.fail(chatID, "broadcast media", err)
		return
	}
	b.reply(chatID, mediaQueuedText(media.Kind, n), nil)
}

// mediaOf извлекает из сообщения фото (наибольший размер), видео или стикер.
func mediaOf(msg *tgbotapi.Message) (model.Media, bool) {
	switch {
	case len(msg.Photo) > 0:
		return model.Media{Kind: model.MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID}, true
	case msg.Video != nil:
		return model.Media{Kind: model.MediaVideo, FileID: msg.Video.FileID}, true
	case msg.Sticker != nil:
		return model.Media{Kind: model.MediaSticker, FileID: msg.Sticker.FileID}, true
	}
	return model.Media{}, false
}

func (b *Bot) promptSubscription(chatID int64, text string) {
	b.reply(chatID, text, subscriptionKeyboard(b.svc.Settings().SponsorChannels()))
}

func (b *Bot) loadUser(ctx context.Context, chatID, userID int64) (*model.User, bool) {
	u, err := b.svc.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			b.reply(chatID, notRegisteredText, nil)
			return nil, false
		}
		b.fail(chatID, "load user", err)
		return nil, false
	}
	return u, true
}

func (b *Bot) settingError(chatID int64, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotAdmin):
		b.reply(chatID, notAdminText, nil)
	case errors.Is(err, config.ErrInvalidSetting):
		b.reply(chatID, "❌ Noto'g'ri qiymat!", nil)
	default:
		b.fail(chatID, op, err)
	}
}

func (b *Bot) fail(chatID int64, op string, err error) {
	b.logger.Error(op, zap.Int64("chat_id", chatID), zap.Error(err))
	b.reply(chatID, failureText, nil)
}
