package sync3

import "github.com/sirupsen/logrus"

// ReplayOps applies a ListResponse's operations, in order, onto the target
// list's sparse index map. It sets joined_count from resp.Count before
// applying any operation, per the OpReplayer contract.
//
// The four operation kinds (DELETE/INSERT/INVALIDATE/SYNC) are applied
// exactly as described by the wire protocol: DELETE and INVALIDATE remove
// entries, INSERT optionally shifts existing occupants toward the most
// recent DELETE's gap before writing, and SYNC assigns a contiguous run of
// room ids, stopping early if the server sent fewer ids than the range
// width (the end-of-list signal).
func ReplayOps(list *List, resp ListResponse) {
	list.SetJoinedCount(resp.Count)
	applyOps(list, resp.Ops)
}

// applyOps is the pure replay step, split out so tests can drive it without
// going through the joined-count side effect.
func applyOps(list *List, ops []Operation) {
	gapIndex := -1
	for _, op := range ops {
		switch op.Op {
		case OpDelete:
			if op.Index == nil {
				logrus.Warn("[SYNC_ENGINE] DELETE op missing index, skipping")
				continue
			}
			index := *op.Index
			delete(list.roomIndexToRoomID, index)
			gapIndex = index
		case OpInsert:
			if op.Index == nil {
				logrus.Warn("[SYNC_ENGINE] INSERT op missing index, skipping")
				continue
			}
			index := *op.Index
			if _, occupied := list.roomIndexToRoomID[index]; occupied {
				if gapIndex < 0 {
					logrus.WithField("index", index).Warn(
						"[SYNC_ENGINE] INSERT into occupied slot with no prior DELETE gap, dropping op")
					continue
				}
				shiftTowardGap(list, gapIndex, index)
			}
			list.roomIndexToRoomID[index] = op.RoomID
		case OpInvalidate:
			if op.Range == nil {
				logrus.Warn("[SYNC_ENGINE] INVALIDATE op missing range, skipping")
				continue
			}
			lo, hi := op.Range[0], op.Range[1]
			for k := range list.roomIndexToRoomID {
				if k >= lo && k <= hi {
					delete(list.roomIndexToRoomID, k)
				}
			}
		case OpSync:
			if op.Range == nil {
				logrus.Warn("[SYNC_ENGINE] SYNC op missing range, skipping")
				continue
			}
			lo, hi := op.Range[0], op.Range[1]
			for i := lo; i <= hi; i++ {
				offset := i - lo
				if offset >= len(op.RoomIDs) {
					break // server sent fewer ids than the range width: end-of-list signal
				}
				list.roomIndexToRoomID[i] = op.RoomIDs[offset]
			}
		default:
			logrus.WithField("op", op.Op).Warn("[SYNC_ENGINE] unknown operation, ignoring")
		}
	}
}

// shiftTowardGap moves occupants between gapIndex and insertIndex one slot
// toward gapIndex, freeing insertIndex for the pending INSERT. Indices
// outside any tracked range are left untouched (their data isn't owned by
// the client).
func shiftTowardGap(list *List, gapIndex, insertIndex int) {
	if gapIndex > insertIndex {
		for i := gapIndex; i >= insertIndex+1; i-- {
			if !list.IndexInRange(i) {
				continue
			}
			if v, ok := list.roomIndexToRoomID[i-1]; ok {
				list.roomIndexToRoomID[i] = v
			} else {
				delete(list.roomIndexToRoomID, i)
			}
		}
	} else if gapIndex < insertIndex {
		for i := gapIndex; i <= insertIndex-1; i++ {
			if !list.IndexInRange(i) {
				continue
			}
			if v, ok := list.roomIndexToRoomID[i+1]; ok {
				list.roomIndexToRoomID[i] = v
			} else {
				delete(list.roomIndexToRoomID, i)
			}
		}
	}
}
