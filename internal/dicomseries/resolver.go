package dicomseries

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom/pkg/tag"

	"lesion-report/internal/errs"
)

// Modalities that identify non-image DICOM objects. These are rejected
// before any pixel access is attempted.
var nonImageModalities = map[string]bool{
	"SR": true, "SEG": true, "RTSTRUCT": true, "RTDOSE": true, "RTPLAN": true,
	"PR": true, "KO": true, "AU": true, "ECG": true, "EPS": true, "HD": true,
	"IO": true, "OAM": true, "OP": true, "OPM": true, "OPT": true, "OPV": true,
	"OSS": true, "PX": true, "RG": true, "SM": true, "SRF": true, "TG": true,
	"XC": true,
}

// Non-image SOP classes caught even when the Modality tag is absent.
var nonImageSOPClasses = map[string]string{
	"1.2.840.10008.5.1.4.1.1.88.11": "Basic Text SR",
	"1.2.840.10008.5.1.4.1.1.88.22": "Enhanced SR",
	"1.2.840.10008.5.1.4.1.1.88.33": "Comprehensive SR",
	"1.2.840.10008.5.1.4.1.1.66.4":  "Segmentation Storage",
	"1.2.840.10008.5.1.4.1.1.481.3": "RT Structure Set Storage",
	"1.2.840.10008.5.1.4.1.1.481.2": "RT Dose Storage",
	"1.2.840.10008.5.1.4.1.1.481.5": "RT Plan Storage",
	"1.2.840.10008.5.1.4.1.1.11.1":  "Grayscale Softcopy Presentation State",
	"1.2.840.10008.5.1.4.1.1.88.59": "Key Object Selection Document",
}

// SliceMeta is the geometric metadata of one slice in the selected series.
type SliceMeta struct {
	Path           string    `json:"path"`
	InstanceNumber *int      `json:"instance_number"`
	Position       []float64 `json:"-"` // ImagePositionPatient
	Orientation    []float64 `json:"-"` // ImageOrientationPatient
	PixelSpacing   []float64 `json:"-"`
	Rows           int       `json:"-"`
	Cols           int       `json:"-"`
}

// Series is one resolved DICOM series, ready for classification.
type Series struct {
	SeriesInstanceUID string
	InputKind         string // "single" or "series"
	Slices            []SliceMeta
	SortingKey        string // "InstanceNumber", "ImagePositionPatient" or "none"
	Is3D              bool
	Metadata          Metadata
	Stats             PixelStats
	ZSpacingMM        *float64
}

// Resolver selects and analyzes one series from a path.
type Resolver struct {
	maxSample int
	log       *logrus.Logger
}

// NewResolver builds a resolver. maxSample bounds the number of slices
// decoded for pixel statistics.
func NewResolver(maxSample int, log *logrus.Logger) *Resolver {
	if maxSample <= 0 {
		maxSample = 16
	}
	return &Resolver{maxSample: maxSample, log: log}
}

// Resolve turns a path to a single DICOM object or a directory of objects
// into exactly one analyzed series.
func (r *Resolver) Resolve(path string) (*Series, []errs.Warning, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, errs.NewNotFoundError(path)
	}
	if info.IsDir() {
		return r.resolveDirectory(path)
	}
	return r.resolveSingle(path)
}

func (r *Resolver) resolveSingle(path string) (*Series, []errs.Warning, error) {
	// Metadata-only read first so the image gate runs before pixel decoding.
	meta, err := ReadObjectMetadata(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read DICOM object %s: %w", path, err)
	}
	if err := checkImageObject(meta); err != nil {
		return nil, nil, err
	}

	md := ExtractMetadata(meta)
	sl := sliceMetaOf(meta)

	series := &Series{
		SeriesInstanceUID: md.SeriesInstanceUID,
		InputKind:         "single",
		Slices:            []SliceMeta{sl},
		SortingKey:        "none",
		Is3D:              false,
		Metadata:          md,
		ZSpacingMM:        md.SliceThickness,
	}

	stats, warnings, err := r.computeStats(series)
	if err != nil {
		return nil, warnings, err
	}
	series.Stats = stats

	r.log.WithFields(logrus.Fields{
		"kind":        "single",
		"patient_id":  md.PatientID,
		"modality":    md.Modality,
		"consistency": stats.DataConsistencyScore,
	}).Info("resolved DICOM input")

	return series, warnings, nil
}

func (r *Resolver) resolveDirectory(dir string) (*Series, []errs.Warning, error) {
	files, err := FindObjects(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, errs.NewNotFoundError(dir)
	}

	var warnings []errs.Warning
	var objects []*Object
	for _, path := range files {
		obj, err := ReadObjectMetadata(path)
		if err != nil {
			warnings = append(warnings, errs.Warning{
				Stage:   "dicom",
				Message: fmt.Sprintf("skipped unreadable object %s: %v", path, err),
			})
			continue
		}
		// Gate before any pixel work; a non-image object fails the run.
		if err := checkImageObject(obj); err != nil {
			return nil, warnings, err
		}
		objects = append(objects, obj)
	}
	if len(objects) == 0 {
		return nil, warnings, errs.NewNotFoundError(dir)
	}

	selected := selectLargestSeries(objects)
	slices, sortKey := sortSlices(selected)

	metaSlices := make([]SliceMeta, len(slices))
	for i, obj := range slices {
		metaSlices[i] = sliceMetaOf(obj)
	}

	md := ExtractMetadata(slices[0])
	series := &Series{
		SeriesInstanceUID: md.SeriesInstanceUID,
		InputKind:         "series",
		Slices:            metaSlices,
		SortingKey:        sortKey,
		Is3D:              len(metaSlices) > 1,
		Metadata:          md,
		ZSpacingMM:        zSpacing(metaSlices, md.SliceThickness),
	}
	if len(metaSlices) == 1 {
		series.InputKind = "single"
	}

	stats, statWarnings, err := r.computeStats(series)
	warnings = append(warnings, statWarnings...)
	if err != nil {
		return nil, warnings, err
	}
	series.Stats = stats

	r.log.WithFields(logrus.Fields{
		"kind":        series.InputKind,
		"n_slices":    len(metaSlices),
		"patient_id":  md.PatientID,
		"modality":    md.Modality,
		"sorted_by":   sortKey,
		"consistency": stats.DataConsistencyScore,
	}).Info("resolved DICOM input")

	return series, warnings, nil
}

// checkImageObject rejects structured reports, segmentations, RT objects
// and other non-image types by Modality and SOP class.
func checkImageObject(o *Object) error {
	modality := strings.ToUpper(o.String(tag.Modality))
	if nonImageModalities[modality] {
		return errs.NewRejectedModalityError(o.Path, modality, o.String(tag.SOPClassUID))
	}
	// (0002,0002) MediaStorageSOPClassUID from the file meta group.
	for _, t := range []tag.Tag{tag.SOPClassUID, {Group: 0x0002, Element: 0x0002}} {
		uid := o.String(t)
		if name, bad := nonImageSOPClasses[uid]; bad {
			return errs.NewRejectedModalityError(o.Path, modality, uid+" ("+name+")")
		}
	}
	return nil
}

// selectLargestSeries groups objects by SeriesInstanceUID and returns the
// group with the most slices. Ties break to the first-encountered group in
// sorted file order; the policy is arbitrary but deterministic.
func selectLargestSeries(objects []*Object) []*Object {
	groups := make(map[string][]*Object)
	var order []string
	for _, obj := range objects {
		uid := obj.String(tag.SeriesInstanceUID)
		if _, seen := groups[uid]; !seen {
			order = append(order, uid)
		}
		groups[uid] = append(groups[uid], obj)
	}

	best := order[0]
	for _, uid := range order[1:] {
		if len(groups[uid]) > len(groups[best]) {
			best = uid
		}
	}
	return groups[best]
}

// sortSlices orders slices by InstanceNumber when every slice carries one
// and the numbers are strictly distinct; otherwise it falls back to the
// projection of ImagePositionPatient onto the slice-normal axis.
func sortSlices(objects []*Object) ([]*Object, string) {
	type keyed struct {
		obj *Object
		n   int
	}

	var withNum []keyed
	numbers := make(map[int]bool)
	allNumbered := true
	for _, obj := range objects {
		n, ok := obj.Int(tag.InstanceNumber)
		if !ok {
			allNumbered = false
			break
		}
		if numbers[n] {
			allNumbered = false
			break
		}
		numbers[n] = true
		withNum = append(withNum, keyed{obj: obj, n: n})
	}

	if allNumbered && len(withNum) == len(objects) {
		sort.SliceStable(withNum, func(a, b int) bool { return withNum[a].n < withNum[b].n })
		out := make([]*Object, len(withNum))
		for i, k := range withNum {
			out[i] = k.obj
		}
		return out, "InstanceNumber"
	}

	anyPosition := false
	for _, obj := range objects {
		if len(obj.Floats(tag.ImagePositionPatient)) >= 3 {
			anyPosition = true
			break
		}
	}
	if !anyPosition {
		return objects, "none"
	}

	normal := sliceNormal(objects)
	type projected struct {
		obj *Object
		z   float64
	}
	proj := make([]projected, len(objects))
	for i, obj := range objects {
		proj[i] = projected{obj: obj, z: normalProjection(obj, normal)}
	}
	sort.SliceStable(proj, func(a, b int) bool { return proj[a].z < proj[b].z })
	out := make([]*Object, len(proj))
	for i, p := range proj {
		out[i] = p.obj
	}
	return out, "ImagePositionPatient"
}

// sliceNormal derives the slice normal from the first object carrying a
// full ImageOrientationPatient; the z axis is the fallback.
func sliceNormal(objects []*Object) [3]float64 {
	for _, obj := range objects {
		iop := obj.Floats(tag.ImageOrientationPatient)
		if len(iop) >= 6 {
			row := [3]float64{iop[0], iop[1], iop[2]}
			col := [3]float64{iop[3], iop[4], iop[5]}
			return [3]float64{
				row[1]*col[2] - row[2]*col[1],
				row[2]*col[0] - row[0]*col[2],
				row[0]*col[1] - row[1]*col[0],
			}
		}
	}
	return [3]float64{0, 0, 1}
}

func normalProjection(obj *Object, normal [3]float64) float64 {
	ipp := obj.Floats(tag.ImagePositionPatient)
	if len(ipp) < 3 {
		return 0
	}
	return ipp[0]*normal[0] + ipp[1]*normal[1] + ipp[2]*normal[2]
}

func sliceMetaOf(o *Object) SliceMeta {
	sl := SliceMeta{
		Path:         o.Path,
		Position:     o.Floats(tag.ImagePositionPatient),
		Orientation:  o.Floats(tag.ImageOrientationPatient),
		PixelSpacing: o.Floats(tag.PixelSpacing),
	}
	if n, ok := o.Int(tag.InstanceNumber); ok {
		sl.InstanceNumber = &n
	}
	if rows, ok := o.Int(tag.Rows); ok {
		sl.Rows = rows
	}
	if cols, ok := o.Int(tag.Columns); ok {
		sl.Cols = cols
	}
	return sl
}

// zSpacing is the mean gap between consecutive slice positions along the
// normal, falling back to SliceThickness.
func zSpacing(slices []SliceMeta, thickness *float64) *float64 {
	var zs []float64
	for _, sl := range slices {
		if len(sl.Position) >= 3 {
			zs = append(zs, sl.Position[2])
		}
	}
	if len(zs) >= 2 {
		sum := 0.0
		for i := 1; i < len(zs); i++ {
			gap := zs[i] - zs[i-1]
			if gap < 0 {
				gap = -gap
			}
			sum += gap
		}
		v := round4(sum / float64(len(zs)-1))
		return &v
	}
	return thickness
}
