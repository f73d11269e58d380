package storage

import "github.com/smallnest/coregraph/metadata"

// ChooseCopy implements the copy-selection rule LoadDataFunc uses: scan a
// data item's incarnations newest-first, take the first one marked
// available, then take the first copy of that incarnation that is itself
// marked available and whose storage key the manager actually has a
// backend for. Exposed standalone (not just inlined into LoadDataFunc) so
// diagnostics and tests can report exactly why a data item resolved the
// way it did.
func ChooseCopy(mgr StorageManager, dataItem string, storageDef metadata.StorageDefinition) (metadata.StorageCopy, error) {
	item, ok := storageDef.DataItems[dataItem]
	if !ok {
		return metadata.StorageCopy{}, &InvalidMetadataError{DataItem: dataItem, Reason: "no storage entry for this data item"}
	}

	for i := len(item.Incarnations) - 1; i >= 0; i-- {
		incarnation := item.Incarnations[i]
		if incarnation.IncarnationStatus != metadata.IncarnationAvailable {
			continue
		}
		for _, copy := range incarnation.Copies {
			if copy.CopyStatus != metadata.CopyAvailable {
				continue
			}
			if !mgr.HasDataStorage(copy.StorageKey) {
				continue
			}
			return copy, nil
		}
		return metadata.StorageCopy{}, &DataNotAvailableError{
			DataItem: dataItem,
			Reason:   "no copy of the latest available incarnation is in a connected storage location",
		}
	}

	return metadata.StorageCopy{}, &DataNotAvailableError{DataItem: dataItem, Reason: "no available incarnation (it may have been expunged)"}
}
