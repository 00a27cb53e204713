package base45

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr error
	}{
		{
			name:  "empty input",
			input: "",
			want:  []byte{},
		},
		{
			name:  "single group",
			input: "-G8", // 41 + 45*16 + 2025*8 = 0x4241
			want:  []byte{0x41, 0x42},
		},
		{
			name:  "two groups",
			input: "-G8-G8",
			want:  []byte{0x41, 0x42, 0x41, 0x42},
		},
		{
			name:  "two-symbol tail carries one byte",
			input: "-G890", // tail: 9 + 45*0 = 9
			want:  []byte{0x41, 0x42, 0x09},
		},
		{
			name:  "punctuation symbol",
			input: "%69", // 38 + 45*6 + 2025*9 = 0x4865
			want:  []byte{0x65, 0x48},
		},
		{
			name:    "invalid character lowercase",
			input:   "ab0",
			wantErr: InvalidCharacterError{Char: 'a'},
		},
		{
			name:    "invalid character in tail",
			input:   "-G8!0",
			wantErr: InvalidCharacterError{Char: '!'},
		},
		{
			name:    "group sum exceeds 16 bits",
			input:   ":::", // 44 + 45*44 + 2025*44 = 91124
			wantErr: InvalidTripleError{Sum: 91124},
		},
		{
			name:    "tail sum exceeds 8 bits",
			input:   "Z9", // 35 + 45*9 = 440
			wantErr: InvalidTripleError{Sum: 440},
		},
		{
			name:    "remainder of one symbol",
			input:   "-G8Z",
			wantErr: ErrTruncatedInput,
		},
		{
			name:    "single symbol",
			input:   "0",
			wantErr: ErrTruncatedInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Decode(%q) = %x, want error %v", tt.input, got, tt.wantErr)
				}
				var charErr InvalidCharacterError
				var tripleErr InvalidTripleError
				switch {
				case errors.As(tt.wantErr, &charErr):
					var gotErr InvalidCharacterError
					if !errors.As(err, &gotErr) || gotErr != charErr {
						t.Errorf("Decode(%q) error = %v, want %v", tt.input, err, tt.wantErr)
					}
				case errors.As(tt.wantErr, &tripleErr):
					var gotErr InvalidTripleError
					if !errors.As(err, &gotErr) || gotErr != tripleErr {
						t.Errorf("Decode(%q) error = %v, want %v", tt.input, err, tt.wantErr)
					}
				default:
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("Decode(%q) error = %v, want %v", tt.input, err, tt.wantErr)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) unexpected error: %v", tt.input, err)
			}
			if tt.want != nil && !bytes.Equal(got, tt.want) {
				t.Errorf("Decode(%q) = %x, want %x", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeGroupArithmetic(t *testing.T) {
	// Every valid (c, d, e) group decodes to the little-endian pair of
	// v_c + 45*v_d + 2025*v_e. Sampled exhaustively over the low symbols to
	// keep the test quick.
	for vc := uint32(0); vc < 45; vc += 7 {
		for vd := uint32(0); vd < 45; vd += 7 {
			for ve := uint32(0); ve < 32; ve += 5 {
				sum := vc + 45*vd + 2025*ve
				if sum > 0xffff {
					continue
				}
				in := string([]byte{alphabet[vc], alphabet[vd], alphabet[ve]})
				got, err := Decode(in)
				if err != nil {
					t.Fatalf("Decode(%q) unexpected error: %v", in, err)
				}
				want := []byte{byte(sum), byte(sum >> 8)}
				if !bytes.Equal(got, want) {
					t.Fatalf("Decode(%q) = %x, want %x", in, got, want)
				}
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(45))

	for _, size := range []int{0, 1, 2, 3, 16, 17, 255, 1024} {
		buf := make([]byte, size)
		rng.Read(buf)

		encoded := Encode(buf)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(buf)) size=%d error: %v", size, err)
		}
		if !bytes.Equal(buf, decoded) {
			t.Errorf("round trip mismatch at size %d", size)
		}
	}
}

func TestEncodeKnownValues(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{}, ""},
		{[]byte{0x00, 0x00}, "000"},
		{[]byte{0x41, 0x42}, "-G8"},
		{[]byte{0x09}, "90"},
	}
	for _, tt := range tests {
		if got := Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%x) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
