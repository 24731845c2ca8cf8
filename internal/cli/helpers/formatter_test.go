package helpers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRow struct {
	ID      string        `header:"Run" json:"id"`
	Samples int64         `header:"Samples" json:"samples"`
	Took    time.Duration `header:"Took" json:"took"`
	Note    string        `json:"note"`
}

func TestNewFormatter(t *testing.T) {
	for _, f := range ListFormats {
		got, err := NewFormatter(f)
		require.NoError(t, err)
		assert.NotNil(t, got)
	}
	_, err := NewFormatter("xml")
	assert.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	rows := []*runRow{
		{ID: "a", Samples: 10, Took: 1500 * time.Microsecond, Note: "ignored"},
		{ID: "bbbb", Samples: 2},
	}

	var buf bytes.Buffer
	f, _ := NewFormatter(FormatTable)
	require.NoError(t, f.Format(rows, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Run", "Samples", "Took"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"a", "10", "2ms"}, strings.Fields(lines[1]))
	assert.NotContains(t, buf.String(), "ignored")
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, _ := NewFormatter(FormatCSV)
	require.NoError(t, f.Format([]runRow{{ID: "a,b", Samples: 1}}, &buf))
	assert.Equal(t, "Run,Samples,Took\n\"a,b\",1,0s\n", buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, _ := NewFormatter(FormatJSON)
	require.NoError(t, f.Format([]runRow{{ID: "a", Note: "kept"}}, &buf))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "kept", decoded[0]["note"])
}

func TestFormatter_EdgeCases(t *testing.T) {
	var buf bytes.Buffer
	f, _ := NewFormatter(FormatTable)
	require.NoError(t, f.Format([]runRow{}, &buf))
	assert.Empty(t, buf.String())

	assert.Error(t, f.Format(runRow{}, &buf))
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("csv", ListFormats))
	assert.ErrorContains(t, ValidateFormat("xml", ListFormats), "table, json, csv")
}
