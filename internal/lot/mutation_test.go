package lot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAffectedLots(t *testing.T) {
	tests := []struct {
		name string
		m    Mutation
		want []int64
	}{
		{
			name: "insert uses after image",
			m:    Mutation{Op: OpInsert, LotID: 9, After: ProductionRecord{ID: 1, LotID: 4}},
			want: []int64{4},
		},
		{
			name: "delete uses before image",
			m:    Mutation{Op: OpDelete, Before: ShippingRecord{ID: 3, LotID: 42}},
			want: []int64{42},
		},
		{
			name: "delete falls back to event lot id",
			m:    Mutation{Op: OpDelete, LotID: 42},
			want: []int64{42},
		},
		{
			name: "update within one lot",
			m: Mutation{
				Op:     OpUpdate,
				Before: InspectionRecord{ID: 2, LotID: 5},
				After:  InspectionRecord{ID: 2, LotID: 5},
			},
			want: []int64{5},
		},
		{
			name: "update moving between lots affects both in ascending order",
			m: Mutation{
				Op:     OpUpdate,
				Before: InspectionRecord{ID: 2, LotID: 8},
				After:  InspectionRecord{ID: 2, LotID: 3},
			},
			want: []int64{3, 8},
		},
		{
			name: "unresolvable delete is empty",
			m:    Mutation{Op: OpDelete},
			want: []int64{},
		},
		{
			name: "unknown operation is empty",
			m:    Mutation{Op: Operation("upsert"), LotID: 1},
			want: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.AffectedLots()
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
