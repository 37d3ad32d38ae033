package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasku/chat-gateway/internal/gateway"
)

func TestParseActivation(t *testing.T) {
	tests := []struct {
		body string
		code string
		ok   bool
	}{
		{"AKTIVASI: AB12CD", "AB12CD", true},
		{"aktivasi:ab12cd", "AB12CD", true},
		{"  Activate:   xy34zw  ", "XY34ZW", true},
		{"ACTIVATE AB12CD", "", false},
		{"AKTIVASI: AB12C", "", false},
		{"AKTIVASI: AB12CDE", "", false},
		{"AKTIVASI: AB-2CD", "", false},
		{"please AKTIVASI: AB12CD", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			code, ok := ParseActivation(tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestClassify(t *testing.T) {
	voice := &gateway.Media{Kind: gateway.MediaVoice, MimeType: "audio/ogg"}
	audio := &gateway.Media{Kind: gateway.MediaAudio, MimeType: "audio/mpeg"}
	image := &gateway.Media{Kind: gateway.MediaImage, MimeType: "image/jpeg"}
	other := &gateway.Media{Kind: gateway.MediaOther, MimeType: "application/pdf"}

	tests := []struct {
		name string
		msg  gateway.Inbound
		want Payload
	}{
		{"activation", gateway.Inbound{Body: "aktivasi: ab12cd"}, Activation{Code: "AB12CD"}},
		{"help indonesian", gateway.Inbound{Body: " Bantuan "}, Command{Name: CommandHelp}},
		{"help english", gateway.Inbound{Body: "HELP"}, Command{Name: CommandHelp}},
		{"menu", gateway.Inbound{Body: "menu"}, Command{Name: CommandHelp}},
		{"balance", gateway.Inbound{Body: "saldo"}, Command{Name: CommandBalance}},
		{"status", gateway.Inbound{Body: "Status"}, Command{Name: CommandStatus}},
		{"command needs exact match", gateway.Inbound{Body: "saldo bulan ini"}, Text{Body: "saldo bulan ini"}},
		{"text", gateway.Inbound{Body: "Lunch 50000"}, Text{Body: "Lunch 50000"}},
		{"empty", gateway.Inbound{Body: "   "}, Unsupported{}},
		{"voice note", gateway.Inbound{Media: voice}, Voice{Media: *voice}},
		{"audio file", gateway.Inbound{Media: audio}, Voice{Media: *audio}},
		{"image with caption", gateway.Inbound{Body: " struk ", Media: image}, Image{Media: *image, Caption: "struk"}},
		{"document", gateway.Inbound{Body: "invoice", Media: other}, Unsupported{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg)
			assert.Equal(t, tt.want.Kind(), got.Kind())
			switch want := tt.want.(type) {
			case Voice:
				assert.Equal(t, want.Media.Kind, got.(Voice).Media.Kind)
			case Image:
				assert.Equal(t, want.Caption, got.(Image).Caption)
			default:
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
