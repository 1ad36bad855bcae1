package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.OrNil())

	v.Add("title", "can't be blank")
	v.Add("email", "is invalid")
	err := v.OrNil()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, []string{"title can't be blank", "email is invalid"}, v.Messages())
	assert.Equal(t, "invalid input: title can't be blank, email is invalid", err.Error())
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@b.co", true},
		{" a@b.co ", true},
		{"a@b", false},
		{"ab.co", false},
		{"", false},
		{"a b@c.io", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEmail(tt.in), tt.in)
	}
}

func TestFormValidation(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"blog ok", BlogInput{Title: "t", Content: "c"}.Validate(), false},
		{"blog blank title", BlogInput{Title: "  ", Content: "c"}.Validate(), true},
		{"comment blank", ValidateComment(" \n"), true},
		{"comment ok", ValidateComment("nice"), false},
		{"subscriber ok", SubscriberInput{FullName: "A", Email: "a@b.co"}.Validate(), false},
		{"subscriber bad email", SubscriberInput{FullName: "A", Email: "nope"}.Validate(), true},
		{"donation ok", DonationInput{Amount: 20, Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), false},
		{"donation zero", DonationInput{Amount: 0, Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), true},
		{"donation NaN", DonationInput{Amount: math.NaN(), Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), true},
		{"donation +Inf", DonationInput{Amount: math.Inf(1), Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), true},
		{"donation -Inf", DonationInput{Amount: math.Inf(-1), Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), true},
		{"donation overflow", DonationInput{Amount: 1e30, Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), true},
		{"donation at max", DonationInput{Amount: MaxDonationAmount, Currency: "USD", Frequency: "once", FullName: "A"}.Validate(), false},
		{"donation currency", DonationInput{Amount: 5, Currency: "VND", Frequency: "once", FullName: "A"}.Validate(), true},
		{"donation frequency", DonationInput{Amount: 5, Currency: "EUR", Frequency: "weekly", FullName: "A"}.Validate(), true},
		{"donation name", DonationInput{Amount: 5, Currency: "GBP", Frequency: "annually"}.Validate(), true},
		{"campaign ok", CampaignInput{Title: "t", Description: "d", Goal: "g", Email: "a@b.co"}.Validate(), false},
		{"campaign missing goal", CampaignInput{Title: "t", Description: "d", Email: "a@b.co"}.Validate(), true},
		{"contact ok", ContactMessage{FromName: "a", FromEmail: "a@b.co", Message: "hi"}.Validate(), false},
		{"contact blank", ContactMessage{}.Validate(), true},
		{"registration short password", Registration{Username: "u", Email: "a@b.co", Password: "123", PasswordConfirmation: "123"}.Validate(), true},
		{"registration mismatch", Registration{Username: "u", Email: "a@b.co", Password: "123456", PasswordConfirmation: "654321"}.Validate(), true},
		{"registration ok", Registration{Username: "u", Email: "a@b.co", Password: "123456", PasswordConfirmation: "123456"}.Validate(), false},
		{"blogger ok", BloggerInput{Username: "u", Email: "a@b.co"}.Validate(), false},
		{"blogger bad", BloggerInput{Username: "", Email: "a@b.co"}.Validate(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr {
				assert.ErrorIs(t, tt.err, ErrInvalidInput)
			} else {
				assert.NoError(t, tt.err)
			}
		})
	}
}

func TestDonationInput_MinorUnits(t *testing.T) {
	assert.Equal(t, int64(2000), DonationInput{Amount: 20}.MinorUnits())
	assert.Equal(t, int64(1999), DonationInput{Amount: 19.99}.MinorUnits())
	assert.Equal(t, int64(1), DonationInput{Amount: 0.01}.MinorUnits())
	assert.Equal(t, int64(MaxDonationAmount*100), DonationInput{Amount: MaxDonationAmount}.MinorUnits())
}

func TestBlog_LikedBy(t *testing.T) {
	b := &Blog{BlogLikes: []BlogLike{{BloggerID: 3}, {BloggerID: 9}}}
	assert.True(t, b.LikedBy(9))
	assert.False(t, b.LikedBy(4))
}

func TestCampaign_AcceptsDonations(t *testing.T) {
	assert.True(t, (&Campaign{IsGetDonated: true}).AcceptsDonations())
	assert.False(t, (&Campaign{IsGetDonated: true, Founder: &Founder{}}).AcceptsDonations())
	assert.False(t, (&Campaign{}).AcceptsDonations())
}

func TestSummarize(t *testing.T) {
	day1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	donations := []Donation{
		{FullName: "a", Amount: 500, Currency: "usd", CreatedAt: day2},
		{FullName: "b", Amount: 2000, Currency: "usd", CreatedAt: day1},
		{FullName: "c", Amount: 1000, Currency: "usd", CreatedAt: day1},
	}

	s := Summarize(donations, 2)
	assert.Equal(t, int64(3500), s.Total)
	assert.Equal(t, "USD", s.Currency)
	require.Len(t, s.TopDonors, 2)
	assert.Equal(t, "b", s.TopDonors[0].FullName)
	assert.Equal(t, "c", s.TopDonors[1].FullName)
	assert.Equal(t, []DailyTotal{{"2024-05-01", 3000}, {"2024-05-02", 500}}, s.ByDate)

	assert.Equal(t, DonationSummary{TopDonors: []Donation{}}, Summarize([]Donation{}, 5))
}

func TestImageID_Unmarshal(t *testing.T) {
	var imgs []GameImage
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"abc","url":"u"},{"id":12,"url":"v"}]`), &imgs))
	assert.Equal(t, ImageID("abc"), imgs[0].ID)
	assert.Equal(t, ImageID("12"), imgs[1].ID)
}

func TestBin_IsValid(t *testing.T) {
	for _, b := range Bins {
		assert.True(t, b.IsValid())
	}
	assert.False(t, Bin("GARBAGE").IsValid())
}

func TestPredictionResult_Labels(t *testing.T) {
	r := &PredictionResult{
		Counts:      map[string]int{"PLASTIC": 2},
		Predictions: []Prediction{{TrashType: "GLASS"}, {TrashType: "PLASTIC"}},
	}
	assert.Equal(t, []string{"GLASS", "PLASTIC"}, r.Labels())
}
