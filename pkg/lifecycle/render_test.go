package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_BaseFields(t *testing.T) {
	record := &ContentRecord{TypeCode: "PZB", Parameter: "0100", Fare: "350"}

	payload, err := Render(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PZB","content":{"fare":"350","parameter":"0100"}}`, string(payload))
}

func TestRender_PrunesBlankExtras(t *testing.T) {
	record := &ContentRecord{
		TypeCode:    "PZB",
		Fare:        "350",
		ExtraParams: `{"zone":"A","note":"","spacer":"   ","nothing":null,"transfer":"free"}`,
	}

	payload, err := Render(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PZB","content":{"fare":"350","zone":"A","transfer":"free"}}`, string(payload))
}

func TestRender_PrunesIncompleteDiscounts(t *testing.T) {
	record := &ContentRecord{
		TypeCode: "PZB",
		Fare:     "350",
		Discounts: `[
			{"code":"STUDENT","label":"student","amount":"100"},
			{"code":"","amount":"50"},
			{"code":"SENIOR","amount":""}
		]`,
	}

	payload, err := Render(record)
	require.NoError(t, err)

	var doc struct {
		Content struct {
			Discounts []DiscountEntry `json:"discounts"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))
	require.Len(t, doc.Content.Discounts, 1)
	assert.Equal(t, "STUDENT", doc.Content.Discounts[0].Code)
}

func TestRender_EmptyDiscountsOmitted(t *testing.T) {
	record := &ContentRecord{
		TypeCode:  "PZB",
		Fare:      "350",
		Discounts: `[{"code":"","amount":""}]`,
	}

	payload, err := Render(record)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "discounts")
}

// Rendering is deterministic: the same record always yields the same bytes.
func TestRender_Deterministic(t *testing.T) {
	record := &ContentRecord{
		TypeCode:    "PZB",
		Parameter:   "0100",
		Fare:        "350",
		ExtraParams: `{"zone":"A","transfer":"free","currency":"JPY"}`,
		Discounts:   `[{"code":"STUDENT","amount":"100"},{"code":"SENIOR","amount":"150"}]`,
	}

	first, err := Render(record)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Render(record)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRender_InvalidExtras(t *testing.T) {
	record := &ContentRecord{TypeCode: "PZB", Fare: "350", ExtraParams: "{"}
	_, err := Render(record)
	assert.Error(t, err)
}
