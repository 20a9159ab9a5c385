package bot

import (
	"fmt"
	"strings"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/service"
)

const (
	notRegisteredText  = "❌ Siz ro'yxatdan o'tmagansiz. /start bosing."
	notAdminText       = "❌ Siz admin emassiz!"
	alreadyHandledText = "❌ Bu to'lov allaqachon ko'rib chiqilgan!"
	notFoundText       = "❌ So'rov topilmadi!"
	failureText        = "❌ Xatolik yuz berdi. Keyinroq urinib ko'ring."
	unknownText        = "🤔 Tushunmadim. Quyidagi menyudan foydalaning."
	unknownAdminText   = "🤔 Noma'lum buyruq. Admin paneli: /admin"
	noReferralsText    = "👥 Sizda hali referallar yo'q."
	noUsersText        = "👥 Foydalanuvchilar yo'q!"
	changeBalanceText  = "💰 Balansni o'zgartirish uchun yozing:\n\n" +
		"ID +summa yoki ID -summa\n\n" +
		"Masalan:\n123456789 +5000\n123456789 -2000"
	broadcastHelpText = "📢 Barcha foydalanuvchilarga xabar yuborish uchun yozing:\n\n/broadcast matn"
	notSubscribedText = "🔒 Botdan to'liq foydalanish uchun homiy kanallarimizga obuna bo'ling!\n\n" +
		"📺 Obuna bo'lgandan so'ng \"Obunani tekshirish\" tugmasini bosing."
	subscriptionFailedText = "❌ Obuna tasdiqlanmadi!\n\n" +
		"🔒 Siz hali ba'zi homiy kanallarga obuna bo'lmagansiz.\n\n" +
		"📺 Iltimos, obuna bo'ling va qayta tekshiring:"
	subscribedText = "🎉 TABRIKLAYMIZ!\n\n" +
		"✅ Siz muvaffaqiyatli obuna bo'ldingiz!\n" +
		"🚀 Endi botning barcha imkoniyatlaridan foydalanishingiz mumkin."
	channelsClearedText  = "✅ Barcha homiy kanallar o'chirildi."
	withdrawalFormatText = "❌ Noto'g'ri format!\n\n" +
		"📋 Ariza quyidagi formatda yoziladi:\n\n" +
		"💳 Karta raqami (16-19 raqam)\n" +
		"💰 Miqdor (faqat raqam)\n\n" +
		"Masalan:\n8600123456789012\n15000"
)

func welcomeText(name string, u *model.User, link string, reward int64) string {
	return fmt.Sprintf(
		"🎉 Xush kelibsiz, %s!\n\n"+
			"📊 Balans: %s so'm\n"+
			"👥 Referallar: %d ta\n\n"+
			"🔗 Sizning referal havolangiz:\n%s\n\n"+
			"Har bir do'stingiz %s so'm olib keladi!",
		name, model.FormatAmount(u.Balance), u.ReferralCount, link, model.FormatAmount(reward),
	)
}

func adminWelcomeText(name string) string {
	return fmt.Sprintf("👨‍💼 Admin paneliga xush kelibsiz, %s!", name)
}

func balanceText(u *model.User, minimum int64) string {
	return fmt.Sprintf(
		"💰 Sizning balansingiz: %s so'm\n\n"+
			"👥 Referallar soni: %d ta\n"+
			"💸 Minimal yechib olish: %s so'm",
		model.FormatAmount(u.Balance), u.ReferralCount, model.FormatAmount(minimum),
	)
}

func referralsText(refs []model.Referral) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Referallaringiz (%d ta):\n\n", len(refs))
	for _, r := range refs {
		name := r.ReferredName
		if name == "" {
			name = "Noma'lum"
		}
		status := "⏳ Kutilmoqda"
		if r.RewardGiven {
			status = "✅ Mukofot berilgan"
		}
		fmt.Fprintf(&b, "• %s - %s\n", name, status)
	}
	return b.String()
}

func referralLinkText(link string, reward int64) string {
	return fmt.Sprintf(
		"🔗 Sizning referal havolangiz:\n\n%s\n\n"+
			"📤 Ushbu havolani do'stlaringizga ulashing va har bir kelgan referal uchun %s so'm oling!",
		link, model.FormatAmount(reward),
	)
}

func withdrawInstructionsText(balance, minimum int64) string {
	return fmt.Sprintf(
		"💸 Pul yechib olish\n\n"+
			"Jami balans: %s so'm\n\n"+
			"📋 Ariza yuborish uchun quyidagi formatda yozing:\n\n"+
			"💳 Karta raqami (16-19 raqam)\n"+
			"💰 Miqdor (minimal %s so'm)\n\n"+
			"Masalan:\n8600123456789012\n15000\n\n"+
			"⚠️ Arizangiz adminga yuboriladi va tasdiqlanadi!",
		model.FormatAmount(balance), model.FormatAmount(minimum),
	)
}

func mediaQueuedText(kind model.MediaKind, recipients int) string {
	name := "Xabar"
	switch kind {
	case model.MediaPhoto:
		name = "Rasm"
	case model.MediaVideo:
		name = "Video"
	case model.MediaSticker:
		name = "Stiker"
	}
	return fmt.Sprintf("📢 %s navbatga qo'yildi: %d ta foydalanuvchi", name, recipients)
}

func lowBalanceText(balance, minimum int64) string {
	return fmt.Sprintf(
		"❌ Minimal yechib olish miqdori %s so'm\nSizning balansingiz: %s so'm",
		model.FormatAmount(minimum), model.FormatAmount(balance),
	)
}

func withdrawalSubmittedText(w *model.Withdrawal, balance int64) string {
	return fmt.Sprintf(
		"✅ To'lov so'rovi yuborildi!\n\n"+
			"🆔 So'rov ID: %d\n"+
			"💰 Miqdor: %s so'm\n"+
			"💳 Karta: %s\n"+
			"📊 Qolgan balans: %s so'm\n\n"+
			"⏳ So'rov adminga yuborildi. Tez orada ko'rib chiqiladi.",
		w.ID, model.FormatAmount(w.Amount), model.MaskCardNumber(w.CardNumber), model.FormatAmount(balance),
	)
}

func insufficientBalanceText(balance int64) string {
	return fmt.Sprintf("❌ Balansingizda yetarli mablag' yo'q!\nSizning balansingiz: %s so'm", model.FormatAmount(balance))
}

func contactAdminText(username string) string {
	if username == "" {
		return "📞 Admin bilan aloqa hozircha mavjud emas."
	}
	return "📞 Admin bilan aloqa: @" + strings.TrimPrefix(username, "@")
}

func decisionText(w *model.Withdrawal) string {
	var b strings.Builder
	switch w.Status {
	case model.WithdrawalApproved:
		b.WriteString("✅ TO'LOV TASDIQLANDI\n\n")
	case model.WithdrawalRejected:
		b.WriteString("❌ TO'LOV RAD ETILDI\n\n")
	default:
		b.WriteString("ℹ️ TO'LOV SO'ROVI\n\n")
	}
	fmt.Fprintf(&b, "🆔 So'rov ID: %d\n", w.ID)
	fmt.Fprintf(&b, "💰 Miqdor: %s so'm\n", model.FormatAmount(w.Amount))
	fmt.Fprintf(&b, "👤 Foydalanuvchi: %d\n", w.UserID)
	if w.ProcessedAt != nil {
		fmt.Fprintf(&b, "📅 Vaqt: %s\n", w.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	switch w.Status {
	case model.WithdrawalApproved:
		b.WriteString("\n✅ Pul foydalanuvchiga yuborildi.")
	case model.WithdrawalRejected:
		b.WriteString("\n❌ Pul foydalanuvchi balansiga qaytarildi.")
	}
	return b.String()
}

func balanceAdjustedText(u *model.User, c *model.BalanceChange) string {
	username := u.Username
	if username == "" {
		username = "none"
	}
	return fmt.Sprintf(
		"✅ Balans muvaffaqiyatli o'zgartirildi!\n\n"+
			"👤 Foydalanuvchi: %s (@%s)\n"+
			"🆔 ID: %d\n"+
			"💰 Oldingi balans: %s so'm\n"+
			"💰 Yangi balans: %s so'm\n"+
			"📈 O'zgarish: %s so'm",
		u.DisplayName(), username, u.ID,
		model.FormatAmount(c.OldBalance), model.FormatAmount(c.NewBalance), service.SignedAmount(c.Delta),
	)
}

func usersText(users []model.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Oxirgi %d foydalanuvchi (ID bilan):\n\n", len(users))
	for i, u := range users {
		username := u.Username
		if username == "" {
			username = "none"
		}
		fmt.Fprintf(&b, "%d. %s (@%s)\n", i+1, u.DisplayName(), username)
		fmt.Fprintf(&b, "   🆔 ID: %d\n", u.ID)
		fmt.Fprintf(&b, "   💰 Balans: %s so'm\n", model.FormatAmount(u.Balance))
		fmt.Fprintf(&b, "   👥 Referallar: %d ta\n\n", u.ReferralCount)
	}
	return b.String()
}

func statsText(s *model.Stats) string {
	return fmt.Sprintf(
		"📊 STATISTIKA\n\n"+
			"👥 Jami foydalanuvchilar: %d\n"+
			"✅ Faol foydalanuvchilar: %d\n"+
			"💰 Jami balans: %s so'm\n\n"+
			"💸 To'lov so'rovlari:\n"+
			"⏳ Kutilmoqda: %d\n"+
			"✅ Tasdiqlangan: %d (%s so'm)\n"+
			"❌ Rad etilgan: %d\n"+
			"🚫 Bekor qilingan: %d",
		s.Users, s.ActiveUsers, model.FormatAmount(s.TotalBalance),
		s.Pending, s.Approved, model.FormatAmount(s.ApprovedAmount), s.Rejected, s.Cancelled,
	)
}

func settingsText(reward, minimum int64, channels []string) string {
	return fmt.Sprintf(
		"⚙️ SOZLAMALAR\n\n"+
			"🎁 Referal mukofoti: %s so'm\n"+
			"💸 Minimal yechib olish: %s so'm\n"+
			"📺 Homiy kanallar: %d ta\n\n"+
			"O'zgartirish:\n"+
			"/setreward summa\n"+
			"/setminimum summa",
		model.FormatAmount(reward), model.FormatAmount(minimum), len(channels),
	)
}

func channelsText(channels []string) string {
	var b strings.Builder
	b.WriteString("📺 HOMIY KANALLAR\n\n")
	if len(channels) == 0 {
		b.WriteString("Kanallar yo'q.\n")
	}
	for i, ch := range channels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ch)
	}
	b.WriteString("\nBoshqarish:\n/addchannel @kanal\n/removechannel @kanal\n/clearchannels")
	return b.String()
}

func sweepText(r *service.SweepReport) string {
	if r.Cancelled == 0 && r.Unknown == 0 {
		return fmt.Sprintf("✅ Barcha foydalanuvchilar obunada! Tekshirildi: %d", r.Checked)
	}
	return fmt.Sprintf(
		"🔄 Obuna tekshiruvi yakunlandi\n\n"+
			"👥 Tekshirildi: %d\n"+
			"❓ Aniqlanmadi: %d\n"+
			"🚫 Bekor qilingan so'rovlar: %d\n"+
			"💰 Qaytarilgan summa: %s so'm\n"+
			"⚠️ Kanalni tark etganlar: %d",
		r.Checked, r.Unknown, r.Cancelled, model.FormatAmount(r.Refunded), len(r.LeftUsers),
	)
}
