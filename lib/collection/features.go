package collection

import "strings"

// Feature represents optional provider capabilities as bit flags.
// The core CRUD operations are mandatory and have no flag.
type Feature uint64

const (
	FeatureAggregate           Feature = 1 << iota // Support for Aggregate
	FeatureAddIndex                                // Support for AddIndex
	FeatureInsertByBatches                         // Native support for InsertByBatches
	FeatureUpdateByBatches                         // Native support for UpdateByBatches
	FeatureRemoveByIDByBatches                     // Native support for RemoveByIDByBatches
	FeatureFindOneAnd                              // Support for FindOneAndReplace/Update/Delete
	FeatureRename                                  // Support for Rename
)

// FeatureAll combines every optional feature.
const FeatureAll = FeatureAggregate | FeatureAddIndex | FeatureInsertByBatches |
	FeatureUpdateByBatches | FeatureRemoveByIDByBatches | FeatureFindOneAnd | FeatureRename

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureAggregate, "Aggregate"},
	{FeatureAddIndex, "AddIndex"},
	{FeatureInsertByBatches, "InsertByBatches"},
	{FeatureUpdateByBatches, "UpdateByBatches"},
	{FeatureRemoveByIDByBatches, "RemoveByIdByBatches"},
	{FeatureFindOneAnd, "FindOneAnd"},
	{FeatureRename, "Rename"},
}

func (f Feature) String() string {
	var parts []string
	for _, fn := range featureNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, "|")
}

// Has reports whether all features of other are set in f.
func (f Feature) Has(other Feature) bool {
	return f&other == other
}
