package imap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- NumRange ----------

func TestNumRange_String(t *testing.T) {
	tests := []struct {
		name string
		r    NumRange
		want string
	}{
		{"single number", NumRange{Start: 5, Stop: 5}, "5"},
		{"range", NumRange{Start: 1, Stop: 10}, "1:10"},
		{"star range", NumRange{Start: 10, Stop: 0}, "10:*"},
		{"star alone", NumRange{Start: 0, Stop: 0}, "*"},
		{"star first", NumRange{Start: 0, Stop: 4}, "*:4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.String())
		})
	}
}

func TestNumRange_Contains(t *testing.T) {
	tests := []struct {
		name string
		r    NumRange
		num  uint32
		want bool
	}{
		{"in single", NumRange{Start: 5, Stop: 5}, 5, true},
		{"not in single", NumRange{Start: 5, Stop: 5}, 6, false},
		{"in range mid", NumRange{Start: 1, Stop: 10}, 5, true},
		{"below range", NumRange{Start: 5, Stop: 10}, 4, false},
		{"star range contains star", NumRange{Start: 10, Stop: 0}, 100, true},
		{"star range beyond star", NumRange{Start: 10, Stop: 0}, 101, false},
		{"star range excludes low", NumRange{Start: 10, Stop: 0}, 9, false},
		{"reversed range in", NumRange{Start: 10, Stop: 1}, 5, true},
		{"star above start resolves reversed", NumRange{Start: 200, Stop: 0}, 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Contains(tt.num, 100))
		})
	}
}

// ---------- ParseSeqSet ----------

func TestParseSeqSet(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"single number", "1", "1", false},
		{"multiple singles", "1,2,3", "1,2,3", false},
		{"range", "1:5", "1:5", false},
		{"star range", "10:*", "10:*", false},
		{"mixed", "1,3:5,10:*", "1,3:5,10:*", false},
		{"just star", "*", "*", false},
		{"star colon star", "*:*", "*", false},
		{"empty string", "", "", true},
		{"invalid number", "abc", "", true},
		{"zero value", "0", "", true},
		{"trailing comma", "1,", "", true},
		{"leading comma", ",1", "", true},
		{"space inside", "1, 2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss, err := ParseSeqSet(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ss.String())
		})
	}
}

func TestSeqSet_Contains(t *testing.T) {
	tests := []struct {
		name  string
		input string
		num   uint32
		want  bool
	}{
		{"single hit", "5", 5, true},
		{"single miss", "5", 6, false},
		{"multi range second", "1:3,7:9", 8, true},
		{"multi range gap", "1:3,7:9", 5, false},
		{"star range", "10:*", 50, true},
		{"star range miss", "10:*", 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss, err := ParseSeqSet(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ss.Contains(tt.num, 50))
		})
	}
}

func TestSeqSet_Dynamic(t *testing.T) {
	for input, want := range map[string]bool{
		"1:5":     false,
		"1,2,3":   false,
		"1:*":     true,
		"*":       true,
		"4,*:9,7": true,
	} {
		ss, err := ParseSeqSet(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, ss.Dynamic(), input)
	}
}

func TestSeqSet_Build(t *testing.T) {
	var ss SeqSet
	ss.AddNum(1, 3)
	ss.AddRange(5, 0)

	assert.Equal(t, "1,3,5:*", ss.String())
	assert.Equal(t, Sequence("1,3,5:*"), ss.Attribute())
}

func TestAttribute_SeqSet(t *testing.T) {
	ss, err := Sequence("2:4").SeqSet()
	require.NoError(t, err)
	assert.True(t, ss.Contains(3, 10))

	ss, err = Atom("42").SeqSet()
	require.NoError(t, err)
	assert.Equal(t, []NumRange{{Start: 42, Stop: 42}}, ss.Set)

	_, err = String("1:2").SeqSet()
	assert.Error(t, err)
}
