package service

import (
	"fmt"
	"strings"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

func newReferralText(reward, balance int64) string {
	return fmt.Sprintf(
		"🎉 Tabriklayman! Yangi referal keldi!\n"+
			"💰 Balansingiz %s so'm ko'paydi.\n"+
			"📊 Jami balans: %s so'm",
		model.FormatAmount(reward), model.FormatAmount(balance),
	)
}

func subscriptionWarningText(channels []string) string {
	var b strings.Builder
	b.WriteString("⚠️ OGOHLANTIRISH\n\n")
	b.WriteString("❌ Siz homiy kanallardan birini tark etdingiz!\n\n")
	b.WriteString("📺 Botdan foydalanish davom etishi uchun barcha homiy kanallarga qayta obuna bo'ling.\n\n")
	writeChannels(&b, channels)
	b.WriteString("\n⏰ Agar tez orada obuna bo'lmasangiz, bot funksiyalari cheklanishi mumkin!")
	return b.String()
}

func referrerNotRewardedText(referrer *model.User) string {
	return fmt.Sprintf(
		"⚠️ Referer mukofot olmadi!\n\n"+
			"👤 Foydalanuvchi: %s%s\n"+
			"🆔 ID: %d\n"+
			"❌ Sabab: Homiy kanallarga obuna emas",
		referrer.DisplayName(), usernameSuffix(referrer.Username), referrer.ID,
	)
}

func newWithdrawalAdminText(u *model.User, w *model.Withdrawal) string {
	return fmt.Sprintf(
		"🔔 YANGI TO'LOV SO'ROVI\n\n"+
			"👤 Foydalanuvchi: %s%s\n"+
			"🆔 User ID: %d\n"+
			"🆔 So'rov ID: %d\n"+
			"💰 Miqdor: %s so'm\n"+
			"💳 Karta raqami: %s\n"+
			"📅 Vaqt: %s\n\n"+
			"⚠️ So'rovni ko'rib chiqing va tasdiqlang!",
		u.DisplayName(), usernameSuffix(u.Username), u.ID,
		w.ID, model.FormatAmount(w.Amount), w.CardNumber,
		w.CreatedAt.Format(timeLayout),
	)
}

func withdrawalApprovedText(w *model.Withdrawal) string {
	return fmt.Sprintf(
		"✅ TO'LOV TASDIQLANDI\n\n"+
			"🆔 So'rov ID: %d\n"+
			"💰 Miqdor: %s so'm\n"+
			"💳 Karta: %s\n"+
			"📅 Vaqt: %s\n\n"+
			"🎉 Pul tez orada sizning kartangizga o'tkaziladi!",
		w.ID, model.FormatAmount(w.Amount), model.MaskCardNumber(w.CardNumber), processedAt(w),
	)
}

func withdrawalRejectedText(w *model.Withdrawal) string {
	return fmt.Sprintf(
		"❌ TO'LOV RAD ETILDI\n\n"+
			"🆔 So'rov ID: %d\n"+
			"💰 Miqdor: %s so'm\n"+
			"💰 Balansingizga qaytarildi: %s so'm\n"+
			"📅 Vaqt: %s\n\n"+
			"📞 Admin bilan bog'laning: /admin",
		w.ID, model.FormatAmount(w.Amount), model.FormatAmount(w.Amount), processedAt(w),
	)
}

func withdrawalsCancelledText(channels []string, count int, refunded int64) string {
	var b strings.Builder
	b.WriteString("⚠️ TO'LOV SO'ROVI BEKOR QILINDI\n\n")
	b.WriteString("❌ Siz homiy kanallardan birini tark etdingiz!\n")
	fmt.Fprintf(&b, "📋 Bekor qilingan so'rovlar: %d ta\n", count)
	fmt.Fprintf(&b, "💰 Balansingizga qaytarildi: %s so'm\n\n", model.FormatAmount(refunded))
	writeChannels(&b, channels)
	b.WriteString("\n📺 Qayta obuna bo'lib, yangi so'rov yuborishingiz mumkin.")
	return b.String()
}

func balanceChangedText(c *model.BalanceChange) string {
	return fmt.Sprintf(
		"💰 Balansingiz o'zgartirildi!\n\n"+
			"Oldingi balans: %s so'm\n"+
			"Yangi balans: %s so'm\n"+
			"O'zgarish: %s so'm",
		model.FormatAmount(c.OldBalance), model.FormatAmount(c.NewBalance), SignedAmount(c.Delta),
	)
}

// SignedAmount форматирует изменение суммы со знаком: 500 -> "+500".
func SignedAmount(delta int64) string {
	if delta > 0 {
		return "+" + model.FormatAmount(delta)
	}
	return model.FormatAmount(delta)
}

func writeChannels(b *strings.Builder, channels []string) {
	if len(channels) == 0 {
		return
	}
	b.WriteString("🔗 Homiy kanallar:\n")
	for _, ch := range channels {
		b.WriteString("• ")
		b.WriteString(ch)
		b.WriteByte('\n')
	}
}

func usernameSuffix(username string) string {
	if username == "" {
		return ""
	}
	return " (@" + username + ")"
}

func processedAt(w *model.Withdrawal) string {
	if w.ProcessedAt == nil {
		return "-"
	}
	return w.ProcessedAt.Format(timeLayout)
}

func adminBroadcastCaption(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "📢 ADMIN XABARI"
	}
	return "📢 ADMIN XABARI\n\n" + caption
}
