package control

import (
	"math"
	"testing"

	"github.com/shiwa/fc-core/internal/ahrs"
)

func TestBodyRate(t *testing.T) {
	ctl := Default()
	ctl.Pk = 2
	ctl.Dk = 0.5
	ctl.Ik = 100
	st := &State{
		Ahrs: ahrs.Result{
			YPR:        ahrs.YPR{Yaw: 0.3, Pitch: 0.1, Roll: -0.2},
			BiasedGyro: [3]float64{0.05, -0.05, 0.01},
		},
		Errors: [3]float64{0.1, 0.1, 0.1},
	}
	cmd, errs := BodyRate(st, &ctl)

	wantErrs := [3]float64{0.2 - 0.05, -0.1 + 0.05, -0.3 - 0.01}
	for i := range wantErrs {
		if math.Abs(errs[i]-wantErrs[i]) > 1e-12 {
			t.Errorf("errs[%d] = %v, want %v", i, errs[i], wantErrs[i])
		}
	}
	for i := 0; i < 2; i++ {
		want := wantErrs[i]*2 + (wantErrs[i]-0.1)*0.5
		if math.Abs(cmd[i]-want) > 1e-12 {
			t.Errorf("cmd[%d] = %v, want %v", i, cmd[i], want)
		}
	}
	if cmd[2] != 0 {
		t.Errorf("команда по рысканью должна быть 0, получили %v", cmd[2])
	}
}

func TestBodyRate_Target(t *testing.T) {
	ctl := Default()
	ctl.Pk = 1
	ctl.Target.Pitch = 90
	st := &State{}
	cmd, errs := BodyRate(st, &ctl)
	if math.Abs(errs[1]-math.Pi/2) > 1e-12 {
		t.Errorf("ошибка тангажа = %v, want pi/2", errs[1])
	}
	if math.Abs(cmd[1]-math.Pi/2) > 1e-12 {
		t.Errorf("коррекция тангажа = %v, want pi/2", cmd[1])
	}
	if cmd[0] != 0 {
		t.Errorf("коррекция крена = %v, want 0", cmd[0])
	}
}

func TestBodyRate_IkIgnored(t *testing.T) {
	st := &State{Ahrs: ahrs.Result{YPR: ahrs.YPR{Roll: 0.5}}}
	a := Default()
	a.Pk = 1
	b := a
	b.Ik = 1e6
	ca, _ := BodyRate(st, &a)
	cb, _ := BodyRate(st, &b)
	if ca != cb {
		t.Errorf("Ik не должен влиять: %v vs %v", ca, cb)
	}
}
