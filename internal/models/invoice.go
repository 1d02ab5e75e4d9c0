package models

// InvoiceRecord is the flattened receipt stored in Firestore, one document per queue delivery.
// ID is the delivery identifier of the queue message it came from, never a content hash,
// so a redelivered message produces a second document with the same field values.
type InvoiceRecord struct {
	ID string `firestore:"id" json:"id"`

	ReceiptNumber      string `firestore:"receiptNumber" json:"receiptNumber"`
	ReceiptDate        string `firestore:"receiptDate" json:"receiptDate"`
	MedicalInstitution string `firestore:"medicalInstitution" json:"medicalInstitution"`
	PractitionerName   string `firestore:"practitionerName" json:"practitionerName"`
	LicenseNumber      string `firestore:"licenseNumber" json:"licenseNumber"`
	Address            string `firestore:"address" json:"address"`
	State              string `firestore:"state" json:"state"`
	ZipCode            string `firestore:"zipCode" json:"zipCode"`
	City               string `firestore:"city" json:"city"`

	PatientName    string `firestore:"patientName" json:"patientName"`
	PatientAddress string `firestore:"patientAddress" json:"patientAddress"`
	PatientCity    string `firestore:"patientCity" json:"patientCity"`
	PatientState   string `firestore:"patientState" json:"patientState"`
	PatientZipCode string `firestore:"patientZipCode" json:"patientZipCode"`

	PriceInRinggit string `firestore:"priceInRinggit" json:"priceInRinggit"`
	PriceInRM      string `firestore:"priceInRM" json:"priceInRM"`
	Consultation   string `firestore:"consultation" json:"consultation"`
	CashCharger    string `firestore:"cashCharger" json:"cashCharger"`
}

// Flatten projects the three nested groups of an extraction into a single record keyed by id.
func Flatten(id string, r ExtractionResult) InvoiceRecord {
	rd, pi, or := r.ReceiptDetails, r.PatientInformation, r.OfficialReceipt
	return InvoiceRecord{
		ID: id,

		ReceiptNumber:      string(rd.ReceiptNumber),
		ReceiptDate:        string(rd.ReceiptDate),
		MedicalInstitution: string(rd.MedicalInstitution),
		PractitionerName:   string(rd.PractitionerName),
		LicenseNumber:      string(rd.LicenseNumber),
		Address:            string(rd.Address),
		State:              string(rd.State),
		ZipCode:            string(rd.ZipCode),
		City:               string(rd.City),

		PatientName:    string(pi.PatientName),
		PatientAddress: string(pi.PatientAddress),
		PatientCity:    string(pi.PatientCity),
		PatientState:   string(pi.PatientState),
		PatientZipCode: string(pi.PatientZipCode),

		PriceInRinggit: string(or.PriceInRinggit),
		PriceInRM:      string(or.PriceInRM),
		Consultation:   string(or.Consultation),
		CashCharger:    string(or.CashCharger),
	}
}

// Regroup is the inverse of Flatten. The id is dropped.
func (rec InvoiceRecord) Regroup() ExtractionResult {
	return ExtractionResult{
		ReceiptDetails: ReceiptDetails{
			ReceiptNumber:      Text(rec.ReceiptNumber),
			ReceiptDate:        Text(rec.ReceiptDate),
			MedicalInstitution: Text(rec.MedicalInstitution),
			PractitionerName:   Text(rec.PractitionerName),
			LicenseNumber:      Text(rec.LicenseNumber),
			Address:            Text(rec.Address),
			State:              Text(rec.State),
			ZipCode:            Text(rec.ZipCode),
			City:               Text(rec.City),
		},
		PatientInformation: PatientInformation{
			PatientName:    Text(rec.PatientName),
			PatientAddress: Text(rec.PatientAddress),
			PatientCity:    Text(rec.PatientCity),
			PatientState:   Text(rec.PatientState),
			PatientZipCode: Text(rec.PatientZipCode),
		},
		OfficialReceipt: OfficialReceipt{
			PriceInRinggit: Text(rec.PriceInRinggit),
			PriceInRM:      Text(rec.PriceInRM),
			Consultation:   Text(rec.Consultation),
			CashCharger:    Text(rec.CashCharger),
		},
	}
}
