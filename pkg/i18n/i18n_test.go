package i18n_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitiscan/vitiscan-web/pkg/i18n"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", i18n.LocaleEnglish},
		{"fr", i18n.LocaleFrench},
		{"fr-FR,fr;q=0.9,en;q=0.8", i18n.LocaleFrench},
		{"FR-ca", i18n.LocaleFrench},
		{"en-US,fr;q=0.5", i18n.LocaleEnglish},
		{"de-DE", i18n.LocaleEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, i18n.ParseAcceptLanguage(tt.header))
		})
	}
}

func TestLocalizer_T(t *testing.T) {
	fr := i18n.NewLocalizer(i18n.LocaleFrench)
	en := i18n.NewLocalizer(i18n.LocaleEnglish)

	assert.Equal(t, "Biologique", fr.T("farming_mode.organic"))
	assert.Equal(t, "Organic", en.T("farming_mode.organic"))
	assert.Equal(t, "Action diagnose is not available at stage idle",
		en.T("errors.invalid_transition", map[string]string{"action": "diagnose", "stage": "idle"}))
	assert.Equal(t, "no.such.key", en.T("no.such.key"))
}

func TestLocalizer_Has(t *testing.T) {
	l := i18n.NewLocalizer(i18n.LocaleFrench)

	assert.True(t, l.Has("diseases.healthy"))
	assert.False(t, l.Has("diseases.unlisted_label"))
}

func TestUnsupportedLocaleFallsBack(t *testing.T) {
	l := i18n.NewLocalizer("de")
	assert.Equal(t, i18n.DefaultLocale, l.GetLocale())

	ctx := i18n.WithLocale(context.Background(), i18n.LocaleFrench)
	assert.Equal(t, "Faible", i18n.TFromContext(ctx, "severity.low"))
}
