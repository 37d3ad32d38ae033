package i18n

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kasku/chat-gateway/internal/model"
)

type Key string

const (
	KeyHelp                   Key = "help"
	KeyBalance                Key = "balance"
	KeyStatus                 Key = "status"
	KeyPairingInstructions    Key = "pairing_instructions"
	KeyActivationSuccess      Key = "activation_success"
	KeyActivationInvalid      Key = "activation_invalid"
	KeyActivationExpired      Key = "activation_expired"
	KeyActivationUsed         Key = "activation_used"
	KeyIdentityBound          Key = "identity_bound"
	KeyActivationThrottled    Key = "activation_throttled"
	KeyTransactionSaved       Key = "transaction_saved"
	KeyTransactionLine        Key = "transaction_line"
	KeyNoMatch                Key = "no_match"
	KeyMediaAck               Key = "media_ack"
	KeyMediaFailed            Key = "media_failed"
	KeyUnsupported            Key = "unsupported"
	KeyReminder               Key = "reminder"
	KeyTemporaryFailure       Key = "temporary_failure"
	KeyConnectionReady        Key = "connection_ready"
	KeyConnectionNotReady     Key = "connection_not_ready"
	KeyTransactionTypeIncome  Key = "type_income"
	KeyTransactionTypeExpense Key = "type_expense"
)

var catalog = map[model.Locale]map[Key]string{
	model.LocaleID: {
		KeyHelp: "*Kasku* 🤖\n" +
			"Catat transaksi cukup dengan chat, misalnya: _Makan siang 50rb_\n" +
			"Kirim foto struk atau pesan suara juga bisa.\n\n" +
			"Perintah:\n" +
			"• *saldo* ringkasan bulan ini\n" +
			"• *status* status koneksi\n" +
			"• *bantuan* pesan ini",
		KeyBalance:                "📊 Ringkasan %s\nPemasukan: %s\nPengeluaran: %s\nSelisih: %s\nJumlah transaksi: %d",
		KeyStatus:                 "Koneksi: %s\nNomor tertaut: %s",
		KeyPairingInstructions:    "Halo! Nomor ini belum tertaut ke akun Kasku.\nBuka dashboard, pilih *Hubungkan WhatsApp*, lalu kirim pesan:\n*AKTIVASI: KODE*",
		KeyActivationSuccess:      "✅ Berhasil! WhatsApp %s sudah tertaut ke akun Kasku kamu. Ketik *bantuan* untuk mulai.",
		KeyActivationInvalid:      "❌ Kode aktivasi tidak ditemukan. Periksa kembali kode di dashboard.",
		KeyActivationExpired:      "⌛ Kode aktivasi sudah kedaluwarsa. Buat kode baru di dashboard.",
		KeyActivationUsed:         "❌ Kode aktivasi sudah pernah dipakai. Buat kode baru di dashboard.",
		KeyIdentityBound:          "ℹ️ Nomor ini sudah tertaut ke akun Kasku.",
		KeyActivationThrottled:    "⏳ Terlalu banyak percobaan aktivasi. Coba lagi dalam beberapa menit.",
		KeyTransactionSaved:       "✅ Tercatat:\n%s",
		KeyTransactionLine:        "• %s %s (%s) %s",
		KeyNoMatch:                "🤔 Maaf, aku belum menangkap transaksinya. Coba tulis seperti: _Bensin 30000_ atau _Gaji 5jt_.",
		KeyMediaAck:               "⏳ Sedang diproses...",
		KeyMediaFailed:            "😕 Belum bisa membaca transaksi dari pesan itu. Coba kirim foto yang lebih jelas atau ketik manual.",
		KeyUnsupported:            "Aku bisa mencatat transaksi dari teks, pesan suara, dan foto struk. Ketik *bantuan* untuk info.",
		KeyReminder:               "👋 Hai! Belum ada transaksi yang dicatat hari ini. Yuk catat pengeluaranmu, cukup balas pesan ini.",
		KeyTemporaryFailure:       "⚠️ Terjadi gangguan sementara. Coba lagi sebentar lagi.",
		KeyConnectionReady:        "terhubung",
		KeyConnectionNotReady:     "tidak terhubung (%s)",
		KeyTransactionTypeIncome:  "Pemasukan",
		KeyTransactionTypeExpense: "Pengeluaran",
	},
	model.LocaleEN: {
		KeyHelp: "*Kasku* 🤖\n" +
			"Log a transaction by chatting, for example: _Lunch 50000_\n" +
			"You can also send a receipt photo or a voice note.\n\n" +
			"Commands:\n" +
			"• *balance* this month's summary\n" +
			"• *status* connection status\n" +
			"• *help* this message",
		KeyBalance:                "📊 Summary for %s\nIncome: %s\nExpenses: %s\nNet: %s\nTransactions: %d",
		KeyStatus:                 "Connection: %s\nLinked number: %s",
		KeyPairingInstructions:    "Hi! This number is not linked to a Kasku account yet.\nOpen the dashboard, choose *Connect WhatsApp*, then send:\n*ACTIVATE: CODE*",
		KeyActivationSuccess:      "✅ Done! WhatsApp %s is now linked to your Kasku account. Type *help* to get started.",
		KeyActivationInvalid:      "❌ Activation code not found. Please check the code in your dashboard.",
		KeyActivationExpired:      "⌛ This activation code has expired. Generate a new one in the dashboard.",
		KeyActivationUsed:         "❌ This activation code was already used. Generate a new one in the dashboard.",
		KeyIdentityBound:          "ℹ️ This number is already linked to a Kasku account.",
		KeyActivationThrottled:    "⏳ Too many activation attempts. Please try again in a few minutes.",
		KeyTransactionSaved:       "✅ Saved:\n%s",
		KeyTransactionLine:        "• %s %s (%s) %s",
		KeyNoMatch:                "🤔 Sorry, I couldn't find a transaction there. Try something like: _Fuel 30000_ or _Salary 5000000_.",
		KeyMediaAck:               "⏳ Processing...",
		KeyMediaFailed:            "😕 I couldn't read a transaction from that. Try a clearer photo or type it in.",
		KeyUnsupported:            "I can log transactions from text, voice notes and receipt photos. Type *help* for more.",
		KeyReminder:               "👋 Hi! You haven't logged any transactions today. Reply to this message to add one.",
		KeyTemporaryFailure:       "⚠️ Something went wrong on our side. Please try again shortly.",
		KeyConnectionReady:        "connected",
		KeyConnectionNotReady:     "not connected (%s)",
		KeyTransactionTypeIncome:  "Income",
		KeyTransactionTypeExpense: "Expense",
	},
}

// T renders the template for key in locale, falling back to Indonesian.
func T(locale model.Locale, key Key, args ...any) string {
	tmpl, ok := catalog[locale][key]
	if !ok {
		tmpl = catalog[model.LocaleID][key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func tag(locale model.Locale) language.Tag {
	if locale == model.LocaleEN {
		return language.English
	}
	return language.Indonesian
}

// FormatAmount renders a rupiah amount with locale digit grouping.
func FormatAmount(locale model.Locale, amount decimal.Decimal) string {
	p := message.NewPrinter(tag(locale))
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	if amount.Equal(amount.Truncate(0)) {
		return sign + "Rp" + p.Sprintf("%d", amount.IntPart())
	}
	return sign + "Rp" + p.Sprintf("%.2f", amount.InexactFloat64())
}

func TypeLabel(locale model.Locale, t model.TransactionType) string {
	if t == model.TransactionTypeIncome {
		return T(locale, KeyTransactionTypeIncome)
	}
	return T(locale, KeyTransactionTypeExpense)
}

var monthNames = map[model.Locale][]string{
	model.LocaleID: {"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"},
	model.LocaleEN: {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
}

// MonthLabel returns e.g. "Maret 2026".
func MonthLabel(locale model.Locale, month int, year int) string {
	names, ok := monthNames[locale]
	if !ok {
		names = monthNames[model.LocaleID]
	}
	return fmt.Sprintf("%s %d", names[month-1], year)
}

// Line is one saved transaction as shown in a confirmation.
type Line struct {
	Type        model.TransactionType
	Amount      decimal.Decimal
	Category    string
	Description string
}

// TransactionLines renders one bullet per saved transaction.
func TransactionLines(locale model.Locale, lines []Line) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		category := l.Category
		if category == "" {
			category = "-"
		}
		out = append(out, strings.TrimSpace(T(locale, KeyTransactionLine,
			TypeLabel(locale, l.Type), FormatAmount(locale, l.Amount), category, l.Description)))
	}
	return strings.Join(out, "\n")
}
