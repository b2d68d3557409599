package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisenews_scraper/internal/domain"
)

func TestParseDateRange(t *testing.T) {
	r, err := domain.ParseDateRange("Week")
	require.NoError(t, err)
	assert.Equal(t, domain.DateRangeWeek, r)
	assert.Equal(t, 3, int(r))

	r, err = domain.ParseDateRange(" 2017 ")
	require.NoError(t, err)
	assert.Equal(t, domain.DateRange2017, r)
	assert.Equal(t, "2017", r.String())

	_, err = domain.ParseDateRange("fortnight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "three-days")
}

func TestSelectKeywords(t *testing.T) {
	all := domain.DefaultKeywords()

	got, err := domain.SelectKeywords(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = domain.SelectKeywords(all, []string{"SUICIDE", "helium", "suicide", ""})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "suicide", got[0].Name)
	assert.Equal(t, "helium_news", got[1].Collection)

	_, err = domain.SelectKeywords(all, []string{"weather"})
	require.Error(t, err)
}

func TestKeywordValidate(t *testing.T) {
	for _, k := range domain.DefaultKeywords() {
		require.NoError(t, k.Validate())
	}
	require.Error(t, domain.Keyword{Name: "x", Collection: "c"}.Validate())
	require.Error(t, domain.Keyword{Terms: "t", Collection: "c"}.Validate())
	require.Error(t, domain.Keyword{Name: "x", Terms: "t"}.Validate())
}

func TestCredentialsValidate(t *testing.T) {
	creds := domain.Credentials{Login: "u", Password: "p"}
	require.NoError(t, creds.Validate())
	require.Error(t, creds.ValidateMail())

	creds.SenderName = "CSRP"
	creds.SenderEmail = "from@example.com"
	creds.RecipientEmail = "to@example.com"
	require.NoError(t, creds.ValidateMail())

	require.EqualError(t, domain.Credentials{Login: "u"}.Validate(), "HKU_PASSWORD is required")

	form := creds.EmailForm("Suicide News csrp")
	assert.Equal(t, domain.EmailForm{
		SenderName:  "CSRP",
		SenderEmail: "from@example.com",
		Recipient:   "to@example.com",
		Subject:     "Suicide News csrp",
	}, form)
}

func TestParseDelivery(t *testing.T) {
	d, err := domain.ParseDelivery("")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryPortal, d)

	d, err = domain.ParseDelivery(" SMTP ")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySMTP, d)

	_, err = domain.ParseDelivery("pigeon")
	require.Error(t, err)
}
