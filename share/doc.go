// Package share stages temporary copies of media for handoff to an
// external share mechanism and guarantees they are deleted afterwards.
//
// Every staged copy lives in its own directory under the stager's root and
// is readable by other processes. A copy is deleted when the host calls
// Release, when its grace timeout expires, or when the stager closes,
// whichever comes first. Copies left behind by a previous process are swept
// when the next stager starts.
//
//	stager, err := share.NewStager(source, share.DefaultOptions())
//	stager.StageBatch(ctx, handles, func(batch *share.Batch, err error) {
//	    // present batch.Items, then:
//	    for _, item := range batch.Items {
//	        stager.Release(item)
//	    }
//	})
package share
