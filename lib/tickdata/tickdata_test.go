package tickdata

import (
	"fmt"
	"testing"

	"github.com/ftchann/uniswap-vault/lib/tickmath"

	ui "github.com/holiman/uint256"
)

func TestUpdateTickKeepsOrder(t *testing.T) {
	td := NewTickData(10)
	zero := new(ui.Int)
	for _, index := range []int{50, -20, 10, 200, -300} {
		td.UpdateTick(index, 0, ui.NewInt(100), zero, zero, false)
	}
	if td.Len() != 5 {
		t.Fatalf("want=%v result=%v", 5, td.Len())
	}
	want := []int{-300, -20, 10, 50, 200}
	for i, index := range want {
		if td.ticks[i].Index != index {
			t.Fatalf("position %d: want=%v result=%v", i, index, td.ticks[i].Index)
		}
	}
}

func TestUpdateTickFlipAndNet(t *testing.T) {
	td := NewTickData(10)
	zero := new(ui.Int)

	if flipped := td.UpdateTick(100, 0, ui.NewInt(500), zero, zero, true); !flipped {
		t.Fatal("expected flip on initialization")
	}
	tick, ok := td.GetTick(100)
	if !ok {
		t.Fatal("tick not initialized")
	}
	minus500 := new(ui.Int).Neg(ui.NewInt(500))
	if !tick.LiquidityNet.Eq(minus500) {
		t.Fatalf("want=%v result=%v", minus500, tick.LiquidityNet)
	}

	if flipped := td.UpdateTick(100, 0, ui.NewInt(200), zero, zero, false); flipped {
		t.Fatal("unexpected flip")
	}
	if flipped := td.UpdateTick(100, 0, new(ui.Int).Neg(ui.NewInt(700)), zero, zero, false); !flipped {
		t.Fatal("expected flip when gross returns to zero")
	}
	td.Clear(100)
	if _, ok := td.GetTick(100); ok {
		t.Fatal("tick should be cleared")
	}
}

func TestFeeGrowthOutsideInitialization(t *testing.T) {
	td := NewTickData(10)
	global0, global1 := ui.NewInt(1000), ui.NewInt(2000)
	td.UpdateTick(-10, 0, ui.NewInt(1), global0, global1, false)
	td.UpdateTick(10, 0, ui.NewInt(1), global0, global1, true)

	below, _ := td.GetTick(-10)
	if !below.FeeGrowthOutside0X128.Eq(global0) {
		t.Fatalf("want=%v result=%v", global0, below.FeeGrowthOutside0X128)
	}
	above, _ := td.GetTick(10)
	if !above.FeeGrowthOutside0X128.IsZero() {
		t.Fatalf("want=0 result=%v", above.FeeGrowthOutside0X128)
	}

	// nothing accrued since the range was opened
	inside0, inside1 := td.GetFeeGrowthInside(-10, 10, 0, global0, global1)
	if !inside0.IsZero() || !inside1.IsZero() {
		t.Fatalf("want zero growth inside, got %v %v", inside0, inside1)
	}

	// growth while the price sits inside the range is attributed to it
	later0, later1 := ui.NewInt(1500), ui.NewInt(2100)
	inside0, inside1 = td.GetFeeGrowthInside(-10, 10, 0, later0, later1)
	if !inside0.Eq(ui.NewInt(500)) || !inside1.Eq(ui.NewInt(100)) {
		t.Fatalf("want (500, 100) got (%v, %v)", inside0, inside1)
	}
}

func TestCrossFlipsOutside(t *testing.T) {
	td := NewTickData(10)
	zero := new(ui.Int)
	td.UpdateTick(10, 0, ui.NewInt(42), zero, zero, false)

	net := td.Cross(10, ui.NewInt(300), ui.NewInt(400))
	if !net.Eq(ui.NewInt(42)) {
		t.Fatalf("want=%v result=%v", 42, net)
	}
	tick, _ := td.GetTick(10)
	if !tick.FeeGrowthOutside0X128.Eq(ui.NewInt(300)) || !tick.FeeGrowthOutside1X128.Eq(ui.NewInt(400)) {
		t.Fatalf("outside not flipped: %v %v", tick.FeeGrowthOutside0X128, tick.FeeGrowthOutside1X128)
	}
}

func TestNextInitializedTick(t *testing.T) {
	td := NewTickData(10)
	zero := new(ui.Int)
	for _, index := range []int{-100, 0, 100} {
		td.UpdateTick(index, 0, ui.NewInt(1), zero, zero, false)
	}
	type args struct {
		tick int
		lte  bool
	}
	tests := []struct {
		args        args
		want        int
		initialized bool
	}{
		{args{0, true}, 0, true},
		{args{5, true}, 0, true},
		{args{-1, true}, -100, true},
		{args{-101, true}, tickmath.MinTick, false},
		{args{0, false}, 100, true},
		{args{-100, false}, 0, true},
		{args{-150, false}, -100, true},
		{args{100, false}, tickmath.MaxTick, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.args), func(t *testing.T) {
			got, initialized := td.NextInitializedTick(tt.args.tick, tt.args.lte)
			if got != tt.want || initialized != tt.initialized {
				t.Fatalf("want=(%v, %v) result=(%v, %v)", tt.want, tt.initialized, got, initialized)
			}
		})
	}
}
