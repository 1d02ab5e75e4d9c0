package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotJSONObject is returned when a payload that must carry an extraction is not a JSON object.
var ErrNotJSONObject = errors.New("payload is not a JSON object")

// ExtractionResult is the structured data a vision model pulls out of one receipt image.
// Every leaf is a string; fields the model left out decode to "".
type ExtractionResult struct {
	ReceiptDetails     ReceiptDetails     `json:"receiptDetails"`
	PatientInformation PatientInformation `json:"patientInformation"`
	OfficialReceipt    OfficialReceipt    `json:"officialReceipt"`
}

type ReceiptDetails struct {
	ReceiptNumber      Text `json:"receiptNumber"`
	ReceiptDate        Text `json:"receiptDate"`
	MedicalInstitution Text `json:"medicalInstitution"`
	PractitionerName   Text `json:"practitionerName"`
	LicenseNumber      Text `json:"licenseNumber"`
	Address            Text `json:"address"`
	State              Text `json:"state"`
	ZipCode            Text `json:"zipCode"`
	City               Text `json:"city"`
}

type PatientInformation struct {
	PatientName    Text `json:"patientName"`
	PatientAddress Text `json:"patientAddress"`
	PatientCity    Text `json:"patientCity"`
	PatientState   Text `json:"patientState"`
	PatientZipCode Text `json:"patientZipCode"`
}

// OfficialReceipt holds the amounts. Keys are matched case-insensitively by encoding/json,
// so older spellings such as "priceinRM" or "cashcharger" land in the same fields.
type OfficialReceipt struct {
	PriceInRinggit Text `json:"priceInRinggit"`
	PriceInRM      Text `json:"priceInRM"`
	Consultation   Text `json:"consultation"`
	CashCharger    Text `json:"cashCharger"`
}

// UnmarshalJSON decodes group by group. A group that is missing, null, or not an object
// is left empty instead of failing the whole document.
func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		ReceiptDetails     json.RawMessage `json:"receiptDetails"`
		PatientInformation json.RawMessage `json:"patientInformation"`
		OfficialReceipt    json.RawMessage `json:"officialReceipt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = ExtractionResult{}
	if err := decodeGroup(raw.ReceiptDetails, &r.ReceiptDetails); err != nil {
		return fmt.Errorf("receiptDetails: %w", err)
	}
	if err := decodeGroup(raw.PatientInformation, &r.PatientInformation); err != nil {
		return fmt.Errorf("patientInformation: %w", err)
	}
	if err := decodeGroup(raw.OfficialReceipt, &r.OfficialReceipt); err != nil {
		return fmt.Errorf("officialReceipt: %w", err)
	}
	return nil
}

func decodeGroup(data json.RawMessage, dst any) error {
	if !isJSONObject(data) {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Text is a string leaf that tolerates whatever scalar a model emits.
// Numbers and booleans keep their literal form, null and nested values become "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		*t = Text(x)
	case json.Number:
		*t = Text(x.String())
	case bool:
		*t = Text(strconv.FormatBool(x))
	default:
		*t = ""
	}
	return nil
}

// Extraction is a parsed model answer.
type Extraction struct {
	Result ExtractionResult
	// Raw is the model's JSON object with insignificant whitespace removed.
	Raw json.RawMessage
	// Empty reports a top-level "{}", the model's way of saying the image is not a receipt.
	Empty bool
}

// ParseExtraction parses model output (or a queue body carrying it) into an Extraction.
// Markdown code fences around the JSON are tolerated.
func ParseExtraction(text string) (Extraction, error) {
	cleaned := StripCodeFence(text)
	if !isJSONObject([]byte(cleaned)) {
		return Extraction{}, ErrNotJSONObject
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return Extraction{}, fmt.Errorf("invalid extraction JSON: %w", err)
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return Extraction{}, fmt.Errorf("invalid extraction JSON: %w", err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(cleaned)); err != nil {
		return Extraction{}, fmt.Errorf("invalid extraction JSON: %w", err)
	}

	return Extraction{
		Result: result,
		Raw:    compact.Bytes(),
		Empty:  len(keys) == 0,
	}, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence from model output.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
