package hcert

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Xiphoseer/dcc-decode/valueset"
)

// CWT claim keys (RFC 8392) plus the health-certificate container claim.
const (
	claimIssuer         = 1
	claimExpirationTime = 4
	claimIssuedAt       = 6
	claimHealthCert     = -260
)

const dateLayout = "2006-01-02"

// CertPayload is the decoded certificate record.
type CertPayload struct {
	Issuer         string      `json:"issuer"`
	ExpirationTime time.Time   `json:"expirationTime"`
	IssuedAt       time.Time   `json:"issuedAt"`
	HealthClaim    HealthClaim `json:"healthClaim"`
}

// HealthClaim is the -260 claim container.
type HealthClaim struct {
	Cert Certificate `json:"cert"`
}

// Certificate is the health-certificate body.
type Certificate struct {
	Version      string        `json:"ver"`
	Name         Name          `json:"nam"`
	DateOfBirth  string        `json:"dob"`
	Vaccinations []Vaccination `json:"v,omitempty"`
	Recoveries   []Recovery    `json:"r,omitempty"`
}

// Name carries the subject name, plain and transliterated.
type Name struct {
	FamilyName    string `json:"fn"`
	GivenName     string `json:"gn"`
	FamilyNameStd string `json:"fnt"`
	GivenNameStd  string `json:"gnt"`
}

// CodedValue pairs a raw code with its resolved display metadata, when the
// reference value set knows the code.
type CodedValue struct {
	Code string          `json:"code"`
	Meta *valueset.Value `json:"meta,omitempty"`
}

// Vaccination is one vaccination-event entry.
type Vaccination struct {
	DiseaseAgent         CodedValue `json:"tg"`
	VaccineOrProphylaxis CodedValue `json:"vp"`
	MedicinalProduct     CodedValue `json:"mp"`
	Manufacturer         CodedValue `json:"ma"`
	DoseNumber           int64      `json:"dn"`
	SeriesDoses          int64      `json:"sd"`
	Date                 time.Time  `json:"dt"`
	Country              string     `json:"co"`
	Issuer               string     `json:"is"`
	CertificateID        string     `json:"ci"`
}

// Recovery is one recovery-event entry.
type Recovery struct {
	DiseaseAgent        CodedValue `json:"tg"`
	FirstPositiveResult time.Time  `json:"fr"`
	Country             string     `json:"co"`
	Issuer              string     `json:"is"`
	ValidFrom           time.Time  `json:"df"`
	ValidUntil          time.Time  `json:"du"`
	CertificateID       string     `json:"ci"`
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithValueSets supplies the reference data used to resolve coded fields.
// A nil registry degrades every resolution to the raw code.
func WithValueSets(reg *valueset.Registry) DecoderOption {
	return func(d *Decoder) {
		d.sets = reg
	}
}

// WithDecodeLogger sets the logger for unknown-field advisories.
func WithDecodeLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// Decoder turns envelope payload bytes into a CertPayload. Unknown keys at
// every level are logged and ignored so that new payload fields never break
// this decoder.
type Decoder struct {
	sets   *valueset.Registry
	logger *slog.Logger
}

// NewDecoder builds a payload decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// intKey normalizes an integer CBOR map key.
func intKey(k interface{}) (int64, bool) {
	switch v := k.(type) {
	case int64:
		return v, true
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	}
	return 0, false
}

func decodeEpoch(raw cbor.RawMessage, name string) (time.Time, error) {
	var secs int64
	if err := cbor.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, MalformedFieldError{Name: name, Err: err}
	}
	return time.Unix(secs, 0).UTC(), nil
}

func decodeString(raw cbor.RawMessage, name string) (string, error) {
	var s string
	if err := cbor.Unmarshal(raw, &s); err != nil {
		return "", MalformedFieldError{Name: name, Err: err}
	}
	return s, nil
}

func decodeInt(raw cbor.RawMessage, name string) (int64, error) {
	var n int64
	if err := cbor.Unmarshal(raw, &n); err != nil {
		return 0, MalformedFieldError{Name: name, Err: err}
	}
	return n, nil
}

func decodeDate(raw cbor.RawMessage, name string) (time.Time, error) {
	s, err := decodeString(raw, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, MalformedFieldError{Name: name, Err: err}
	}
	return t, nil
}

func (d *Decoder) codedValue(raw cbor.RawMessage, name string, kind valueset.Kind) (CodedValue, error) {
	code, err := decodeString(raw, name)
	if err != nil {
		return CodedValue{}, err
	}
	return CodedValue{Code: code, Meta: d.sets.Resolve(kind, code)}, nil
}

// Decode interprets payload bytes as a CWT claims map and promotes the
// required claims into a typed record. Claims are dispatched by numeric
// key; unrecognized keys are advisory only.
func (d *Decoder) Decode(payload []byte) (*CertPayload, error) {
	var claims map[interface{}]cbor.RawMessage
	if err := cbor.Unmarshal(payload, &claims); err != nil {
		return nil, MalformedEnvelopeError{Reason: "payload is not a map: " + err.Error()}
	}

	var (
		issuer      *string
		expiration  *time.Time
		issuedAt    *time.Time
		healthClaim *HealthClaim
	)

	for k, raw := range claims {
		key, ok := intKey(k)
		if !ok {
			d.logger.Info("ignoring non-integer claim key", "key", fmt.Sprintf("%v", k))
			continue
		}
		switch key {
		case claimIssuer:
			s, err := decodeString(raw, "issuer")
			if err != nil {
				return nil, err
			}
			issuer = &s
		case claimExpirationTime:
			t, err := decodeEpoch(raw, "expiration_time")
			if err != nil {
				return nil, err
			}
			expiration = &t
		case claimIssuedAt:
			t, err := decodeEpoch(raw, "issued_at")
			if err != nil {
				return nil, err
			}
			issuedAt = &t
		case claimHealthCert:
			hc, err := d.decodeHealthClaim(raw)
			if err != nil {
				return nil, err
			}
			healthClaim = hc
		default:
			d.logger.Info("ignoring unknown claim key", "key", key)
		}
	}

	if issuer == nil {
		return nil, MissingFieldError{Name: "issuer"}
	}
	if expiration == nil {
		return nil, MissingFieldError{Name: "expiration_time"}
	}
	if issuedAt == nil {
		return nil, MissingFieldError{Name: "issued_at"}
	}
	if healthClaim == nil {
		return nil, MissingFieldError{Name: "health_claim"}
	}

	return &CertPayload{
		Issuer:         *issuer,
		ExpirationTime: *expiration,
		IssuedAt:       *issuedAt,
		HealthClaim:    *healthClaim,
	}, nil
}

func (d *Decoder) decodeHealthClaim(raw cbor.RawMessage) (*HealthClaim, error) {
	var entries map[interface{}]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &entries); err != nil {
		return nil, MalformedFieldError{Name: "health_claim", Err: err}
	}

	var cert *Certificate
	for k, entry := range entries {
		key, ok := intKey(k)
		if !ok {
			d.logger.Info("ignoring non-integer health-claim key", "key", fmt.Sprintf("%v", k))
			continue
		}
		switch key {
		case 1:
			c, err := d.decodeCertificate(entry)
			if err != nil {
				return nil, err
			}
			cert = c
		default:
			d.logger.Info("ignoring unknown health-claim key", "key", key)
		}
	}
	if cert == nil {
		return nil, MissingFieldError{Name: "health_claim.cert"}
	}
	return &HealthClaim{Cert: *cert}, nil
}

func (d *Decoder) decodeCertificate(raw cbor.RawMessage) (*Certificate, error) {
	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, MalformedFieldError{Name: "cert", Err: err}
	}

	var (
		cert        Certificate
		haveVersion bool
		haveName    bool
		haveDOB     bool
	)

	for key, entry := range fields {
		switch key {
		case "ver":
			s, err := decodeString(entry, "ver")
			if err != nil {
				return nil, err
			}
			cert.Version = s
			haveVersion = true
		case "nam":
			name, err := d.decodeName(entry)
			if err != nil {
				return nil, err
			}
			cert.Name = *name
			haveName = true
		case "dob":
			s, err := decodeString(entry, "dob")
			if err != nil {
				return nil, err
			}
			cert.DateOfBirth = s
			haveDOB = true
		case "v":
			var items []cbor.RawMessage
			if err := cbor.Unmarshal(entry, &items); err != nil {
				return nil, MalformedFieldError{Name: "v", Err: err}
			}
			for _, item := range items {
				vac, err := d.decodeVaccination(item)
				if err != nil {
					return nil, err
				}
				cert.Vaccinations = append(cert.Vaccinations, *vac)
			}
		case "r":
			var items []cbor.RawMessage
			if err := cbor.Unmarshal(entry, &items); err != nil {
				return nil, MalformedFieldError{Name: "r", Err: err}
			}
			for _, item := range items {
				rec, err := d.decodeRecovery(item)
				if err != nil {
					return nil, err
				}
				cert.Recoveries = append(cert.Recoveries, *rec)
			}
		default:
			d.logger.Info("ignoring unknown certificate key", "key", key)
		}
	}

	if !haveVersion {
		return nil, MissingFieldError{Name: "ver"}
	}
	if !haveName {
		return nil, MissingFieldError{Name: "nam"}
	}
	if !haveDOB {
		return nil, MissingFieldError{Name: "dob"}
	}
	if len(cert.Vaccinations) == 0 && len(cert.Recoveries) == 0 {
		return nil, MissingFieldError{Name: "v"}
	}

	return &cert, nil
}

func (d *Decoder) decodeName(raw cbor.RawMessage) (*Name, error) {
	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, MalformedFieldError{Name: "nam", Err: err}
	}

	var name Name
	for key, entry := range fields {
		s, err := decodeString(entry, "nam."+key)
		if err != nil {
			return nil, err
		}
		switch key {
		case "fn":
			name.FamilyName = s
		case "gn":
			name.GivenName = s
		case "fnt":
			name.FamilyNameStd = s
		case "gnt":
			name.GivenNameStd = s
		default:
			d.logger.Info("ignoring unknown name key", "key", key)
		}
	}
	return &name, nil
}

func (d *Decoder) decodeVaccination(raw cbor.RawMessage) (*Vaccination, error) {
	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, MalformedFieldError{Name: "v[]", Err: err}
	}

	var (
		vac  Vaccination
		have = map[string]bool{}
	)

	for key, entry := range fields {
		var err error
		switch key {
		case "tg":
			vac.DiseaseAgent, err = d.codedValue(entry, "tg", valueset.DiseaseAgent)
		case "vp":
			vac.VaccineOrProphylaxis, err = d.codedValue(entry, "vp", valueset.VaccineProphylaxis)
		case "mp":
			vac.MedicinalProduct, err = d.codedValue(entry, "mp", valueset.MedicinalProduct)
		case "ma":
			vac.Manufacturer, err = d.codedValue(entry, "ma", valueset.Manufacturer)
		case "dn":
			vac.DoseNumber, err = decodeInt(entry, "dn")
		case "sd":
			vac.SeriesDoses, err = decodeInt(entry, "sd")
		case "dt":
			vac.Date, err = decodeDate(entry, "dt")
		case "co":
			vac.Country, err = decodeString(entry, "co")
		case "is":
			vac.Issuer, err = decodeString(entry, "is")
		case "ci":
			vac.CertificateID, err = decodeString(entry, "ci")
		default:
			d.logger.Info("ignoring unknown vaccination key", "key", key)
			continue
		}
		if err != nil {
			return nil, err
		}
		have[key] = true
	}

	for _, req := range []string{"tg", "vp", "mp", "ma", "dn", "sd", "dt", "co", "is", "ci"} {
		if !have[req] {
			return nil, MissingFieldError{Name: "v[]." + req}
		}
	}
	return &vac, nil
}

func (d *Decoder) decodeRecovery(raw cbor.RawMessage) (*Recovery, error) {
	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, MalformedFieldError{Name: "r[]", Err: err}
	}

	var (
		rec  Recovery
		have = map[string]bool{}
	)

	for key, entry := range fields {
		var err error
		switch key {
		case "tg":
			rec.DiseaseAgent, err = d.codedValue(entry, "tg", valueset.DiseaseAgent)
		case "fr":
			rec.FirstPositiveResult, err = decodeDate(entry, "fr")
		case "co":
			rec.Country, err = decodeString(entry, "co")
		case "is":
			rec.Issuer, err = decodeString(entry, "is")
		case "df":
			rec.ValidFrom, err = decodeDate(entry, "df")
		case "du":
			rec.ValidUntil, err = decodeDate(entry, "du")
		case "ci":
			rec.CertificateID, err = decodeString(entry, "ci")
		default:
			d.logger.Info("ignoring unknown recovery key", "key", key)
			continue
		}
		if err != nil {
			return nil, err
		}
		have[key] = true
	}

	for _, req := range []string{"tg", "fr", "co", "is", "df", "du", "ci"} {
		if !have[req] {
			return nil, MissingFieldError{Name: "r[]." + req}
		}
	}
	return &rec, nil
}
