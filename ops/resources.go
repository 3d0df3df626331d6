package ops

import (
	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/resource"
)

// Resources exposes the resources() op: a snapshot enumeration of every
// live handle in the table.
type Resources struct {
	Table *resource.Table
}

type resourceEntryJSON struct {
	RID int32  `json:"rid"`
	Tag string `json:"tag"`
}

// List implements the resources() op.
func (r *Resources) List(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	entries := r.Table.Entries()
	out := make([]resourceEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, resourceEntryJSON{RID: e.RID, Tag: e.Tag})
	}
	reply, err := dispatch.EncodeJsonOK(out)
	if err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	return dispatch.SyncResult(reply), nil
}
