package payments

import (
	"bytes"
	_ "embed"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/transactions.csv
var sampleCSV []byte

type testCase struct {
	name    string
	data    string
	records []Record
	err     error
}

var testCases = []testCase{
	{
		"simple",
		`type,client,tx,amount
deposit,1,1,1.0
withdrawal,1,2,0.5
`,
		[]Record{
			deposit(1, 1, "1.0"),
			withdrawal(1, 2, "0.5"),
		},
		nil,
	},
	{
		"spaces and case",
		`type, client, tx, amount
  Deposit ,  1 , 1 ,  2.5
DISPUTE, 1, 1,
`,
		[]Record{
			deposit(1, 1, "2.5"),
			ref(Dispute, 1, 1),
		},
		nil,
	},
	{
		"reordered header",
		`tx,amount,client,type
7,3.25,2,deposit
7,,2,chargeback
`,
		[]Record{
			deposit(2, 7, "3.25"),
			ref(Chargeback, 2, 7),
		},
		nil,
	},
	{
		"missing amount column",
		`type,client,tx
resolve,4,9
deposit,4,10
`,
		[]Record{
			ref(Resolve, 4, 9),
			{Kind: Deposit, Client: 4, Tx: 10},
		},
		nil,
	},
	{
		"short dispute line",
		`type,client,tx,amount
deposit,1,1,5
dispute,1,1
`,
		[]Record{
			deposit(1, 1, "5"),
			ref(Dispute, 1, 1),
		},
		nil,
	},
	{
		"malformed lines dropped",
		`type,client,tx,amount
deposit,1,1,5
deposit,one,2,5
deposit,1,-3,5
deposit,1,4,five
transfer,1,5,5
deposit,1
deposit,1,"6,5
`,
		[]Record{
			deposit(1, 1, "5"),
		},
		nil,
	},
	{
		"id bounds",
		`type,client,tx,amount
deposit,65535,4294967295,1
deposit,65536,1,1
deposit,1,4294967296,1
`,
		[]Record{
			deposit(65535, 4294967295, "1"),
		},
		nil,
	},
	{
		"amount exponent bounds",
		`type,client,tx,amount
deposit,1,1,1e-3000000
deposit,1,2,1e-99999999
deposit,1,3,1e29
deposit,1,4,0.00000000000000000000000000001
deposit,1,5,0.0000000000000000000000000001
deposit,1,6,1e28
`,
		[]Record{
			deposit(1, 5, "0.0000000000000000000000000001"),
			deposit(1, 6, "10000000000000000000000000000"),
		},
		nil,
	},
	{
		"header only",
		"type,client,tx,amount\n",
		nil,
		nil,
	},
	{
		"empty",
		"",
		nil,
		ErrEmptyInput,
	},
	{
		"bad header",
		"kind,client,id,amount\ndeposit,1,1,1\n",
		nil,
		ErrBadHeader,
	},
}

func TestParseRecords(t *testing.T) {
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := ParseRecords(bytes.NewBufferString(tc.data))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assertRecords(t, tc.records, records)
		})
	}
}

func assertRecords(t *testing.T, want, got []Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Kind, got[i].Kind, "record %d kind", i)
		assert.Equal(t, want[i].Client, got[i].Client, "record %d client", i)
		assert.Equal(t, want[i].Tx, got[i].Tx, "record %d tx", i)
		if want[i].Amount == nil {
			assert.Nil(t, got[i].Amount, "record %d amount", i)
			continue
		}
		require.NotNil(t, got[i].Amount, "record %d amount", i)
		assert.True(t, want[i].Amount.Equal(*got[i].Amount), "record %d amount %s, want %s", i, got[i].Amount, want[i].Amount)
	}
}

func TestDecoderMalformedLines(t *testing.T) {
	d := NewDecoder(strings.NewReader(`type,client,tx,amount
deposit,1,1,5
deposit,x,2,5
refund,1,3,1
dispute,1,1,
`))

	var (
		records []Record
		lines   []int
	)
	for {
		rec, err := d.Next()
		if err == io.EOF {
			break
		}
		var malformed *MalformedError
		if errors.As(err, &malformed) {
			assert.ErrorIs(t, err, ErrMalformedRecord)
			lines = append(lines, malformed.Line)
			continue
		}
		require.NoError(t, err)
		records = append(records, rec)
	}

	assert.Equal(t, []int{3, 4}, lines)
	assertRecords(t, []Record{deposit(1, 1, "5"), ref(Dispute, 1, 1)}, records)
}

func TestDecoderBadHeader(t *testing.T) {
	d := NewDecoder(strings.NewReader("kind,client,id,amount\ndeposit,1,1,1\ndeposit,1,2,1\n"))

	_, err := d.Next()
	require.ErrorIs(t, err, ErrBadHeader)

	var lines []int
	for {
		_, err := d.Next()
		if err == io.EOF {
			break
		}
		var malformed *MalformedError
		require.ErrorAs(t, err, &malformed)
		assert.ErrorIs(t, err, ErrBadHeader)
		lines = append(lines, malformed.Line)
	}
	assert.Equal(t, []int{2, 3}, lines)
}

func TestMalformedErrorUnwrap(t *testing.T) {
	_, err := NewDecoder(strings.NewReader("type,client,tx\nrefund,1,1\n")).Next()

	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseAmountExpressions(t *testing.T) {
	data := "type,client,tx,amount\ndeposit,1,1,(2.5 * 4)\ndeposit,1,2,(1 +\ndeposit,1,3,(0.1 + 0.2)\n"

	records, err := ParseRecords(strings.NewReader(data), WithAmountExpressions())
	require.NoError(t, err)
	assertRecords(t, []Record{deposit(1, 1, "10"), deposit(1, 3, "0.3")}, records)
	assert.Equal(t, "0.3", records[1].Amount.String())

	records, err = ParseRecords(strings.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, records, "expressions are rejected unless enabled")
}

func TestParseRecordsAsync(t *testing.T) {
	c, e := ParseRecordsAsync(bytes.NewReader(sampleCSV))

	var (
		records   []Record
		malformed int
	)
	for done := false; !done; {
		select {
		case rec, ok := <-c:
			if ok {
				records = append(records, rec)
			}
		case err := <-e:
			if err == nil {
				done = true
				break
			}
			require.ErrorIs(t, err, ErrMalformedRecord)
			malformed++
		}
	}

	assert.Len(t, records, 9)
	assert.Equal(t, 2, malformed)
}

func TestSampleReplay(t *testing.T) {
	records, err := ParseRecords(bytes.NewReader(sampleCSV))
	require.NoError(t, err)

	e := NewEngine()
	var invalid int
	for _, r := range records {
		if err := e.Apply(r); err != nil {
			assert.ErrorIs(t, err, ErrMissingAmount)
			invalid++
		}
	}
	assert.Equal(t, 1, invalid)

	rows := e.Snapshot()
	require.Len(t, rows, 2)

	assert.Equal(t, uint16(1), rows[0].Client)
	assert.Equal(t, "1.5000", rows[0].Available.StringFixedBank(OutputPlaces))
	assert.Equal(t, "0.0000", rows[0].Held.StringFixedBank(OutputPlaces))
	assert.False(t, rows[0].Locked)

	assert.Equal(t, uint16(2), rows[1].Client)
	assert.Equal(t, "2.0000", rows[1].Available.StringFixedBank(OutputPlaces))
	assert.Equal(t, "2.0000", rows[1].Total.StringFixedBank(OutputPlaces))
	assert.False(t, rows[1].Locked, "chargeback of an undisputed tx is ignored")
}
