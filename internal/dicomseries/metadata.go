package dicomseries

import (
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Metadata is the read-only metadata extracted from one DICOM object.
// JSON keys keep DICOM attribute casing to match the analysis schema.
type Metadata struct {
	PatientID         string    `json:"PatientID"`
	StudyInstanceUID  string    `json:"StudyInstanceUID"`
	SeriesInstanceUID string    `json:"SeriesInstanceUID"`
	Modality          string    `json:"Modality"`
	BodyPartExamined  *string   `json:"BodyPartExamined"`
	StudyDate         *string   `json:"StudyDate"`
	SeriesDescription *string   `json:"SeriesDescription"`
	InstanceNumber    *int      `json:"InstanceNumber"`
	PixelSpacing      []float64 `json:"PixelSpacing"`
	SliceThickness    *float64  `json:"SliceThickness"`
}

// ExtractMetadata pulls structured metadata out of a parsed object.
func ExtractMetadata(o *Object) Metadata {
	md := Metadata{
		PatientID:         o.String(tag.PatientID),
		StudyInstanceUID:  o.String(tag.StudyInstanceUID),
		SeriesInstanceUID: o.String(tag.SeriesInstanceUID),
		Modality:          o.String(tag.Modality),
		StudyDate:         parseDicomDate(o.String(tag.StudyDate)),
	}

	if v := o.String(tag.BodyPartExamined); v != "" {
		md.BodyPartExamined = &v
	}
	if v := o.String(tag.SeriesDescription); v != "" {
		md.SeriesDescription = &v
	}
	if n, ok := o.Int(tag.InstanceNumber); ok {
		md.InstanceNumber = &n
	}
	if ps := o.Floats(tag.PixelSpacing); len(ps) >= 2 {
		md.PixelSpacing = ps[:2]
	}
	if st, ok := o.Float(tag.SliceThickness); ok {
		md.SliceThickness = &st
	}
	return md
}

// parseDicomDate converts a DICOM DA value (YYYYMMDD) to ISO-8601.
func parseDicomDate(raw string) *string {
	if len(raw) != 8 {
		return nil
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return nil
		}
	}
	iso := raw[:4] + "-" + raw[4:6] + "-" + raw[6:8]
	return &iso
}

// metadataCompleteness scores how many identifying fields are present.
func metadataCompleteness(md Metadata) float64 {
	present := 0
	if md.PatientID != "" {
		present++
	}
	if md.StudyInstanceUID != "" {
		present++
	}
	if md.SeriesInstanceUID != "" {
		present++
	}
	if md.Modality != "" {
		present++
	}
	if md.StudyDate != nil {
		present++
	}
	if len(md.PixelSpacing) >= 2 {
		present++
	}
	return round3(float64(present) / 6.0)
}
