package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>POS PURCHASE GROCERY MART
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>1250.00
<FITID>2024012001
<NAME>EMPLOYER PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	parser := NewParser()
	entries, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	debit := entries[0]
	assert.Equal(t, "2024011501", debit.FiTID)
	assert.Equal(t, "1234567890", debit.AccountID)
	assert.Equal(t, "GROCERY MART", debit.Payee, "POS prefix stripped")
	assert.EqualValues(t, -2550, debit.Amount)
	assert.Equal(t, 2024, debit.Date.Year())
	assert.Equal(t, time.January, debit.Date.Month())

	credit := entries[1]
	assert.Equal(t, "EMPLOYER PAYROLL", credit.Payee)
	assert.EqualValues(t, 125000, credit.Amount)
}

func TestParseFilePreprocessing(t *testing.T) {
	// Leading blank lines and mixed-case severity both appear in the wild.
	mangled := "\n\n  " + strings.ReplaceAll(sampleBankOFX, "<SEVERITY>INFO", "<SEVERITY>Info")

	parser := NewParser()
	entries, err := parser.ParseFile(context.Background(), strings.NewReader(mangled))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPreprocessSeverity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "sgml form without closing tag", in: "<SEVERITY>Info", want: "<SEVERITY>INFO"},
		{name: "sgml form with crlf", in: "<SEVERITY>Warn\r\n<CODE>0", want: "<SEVERITY>WARN\r\n<CODE>0"},
		{name: "xml form", in: "<SEVERITY>Error</SEVERITY>", want: "<SEVERITY>ERROR</SEVERITY>"},
		{name: "already uppercase", in: "<SEVERITY>INFO", want: "<SEVERITY>INFO"},
	}
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.preprocess(tt.in))
		})
	}
}

func TestGetAccounts(t *testing.T) {
	parser := NewParser()
	accounts, err := parser.GetAccounts(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"1234567890"}, accounts)
}

func TestExtractPayee(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain name", in: "GROCERY MART", want: "GROCERY MART"},
		{name: "check card prefix", in: "CHECK CARD COFFEE SHOP", want: "COFFEE SHOP"},
		{name: "date stamp", in: "01/15 COFFEE SHOP", want: "COFFEE SHOP"},
	}
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := p.extractPayeeFromName(tt.in)
			assert.Equal(t, tt.want, entry)
		})
	}
}
