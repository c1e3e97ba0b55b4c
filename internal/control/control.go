// Package control — параметры стабилизации, снимок состояния контура и регулятор угловой скорости.
package control

import (
	"math"

	"github.com/shiwa/fc-core/internal/ahrs"
)

// TargetDegrees — целевая ориентация в градусах.
type TargetDegrees struct {
	Yaw   float64 `yaml:"yaw"`
	Pitch float64 `yaml:"pitch"`
	Roll  float64 `yaml:"roll"`
}

// Control — настраиваемые параметры. Меняются только разборщиком команд под блокировкой ресурса,
// контур управления читает копию.
type Control struct {
	Telemetry bool          `yaml:"telemetry"`
	Pk        float64       `yaml:"pk"`
	Ik        float64       `yaml:"ik"`
	Dk        float64       `yaml:"dk"`
	PitchPk   float64       `yaml:"pitch_pk"`
	RollPk    float64       `yaml:"roll_pk"`
	YawPk     float64       `yaml:"yaw_pk"`
	Thrust    float64       `yaml:"thrust"`
	Target    TargetDegrees `yaml:"target"`
}

// Default — значения при старте: телеметрия выключена, тяга 0, коэффициенты осей 1.
func Default() Control {
	return Control{PitchPk: 1, RollPk: 1, YawPk: 1}
}

// State — последний снимок контура; владеет задача IMU.
type State struct {
	Ahrs   ahrs.Result
	Cmd    [3]float64
	Errors [3]float64
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// BodyRate — регулятор угловой скорости.
// Ошибка угла (цель − оценка) умножается на коэффициент оси, из неё вычитается скорость без смещения:
// x — крен, y — тангаж, z — рысканье. Коррекция = err·Pk + i·Ik + (err − прошлая err)·Dk.
// Интегратор не подключён (i = 0, Ik не влияет), команда по рысканью всегда 0.
// Возвращает коррекции и ошибки для производной на следующем цикле.
func BodyRate(state *State, ctl *Control) (cmd, errs [3]float64) {
	ypr := state.Ahrs.YPR
	bg := state.Ahrs.BiasedGyro

	rollErr := (toRad(ctl.Target.Roll) - ypr.Roll) * ctl.RollPk
	pitchErr := (toRad(ctl.Target.Pitch) - ypr.Pitch) * ctl.PitchPk
	yawErr := (toRad(ctl.Target.Yaw) - ypr.Yaw) * ctl.YawPk

	errs = [3]float64{
		rollErr - bg[0],
		pitchErr - bg[1],
		yawErr - bg[2],
	}
	const integral = 0.0
	for i := 0; i < 2; i++ {
		cmd[i] = errs[i]*ctl.Pk + integral*ctl.Ik + (errs[i]-state.Errors[i])*ctl.Dk
	}
	cmd[2] = 0
	return cmd, errs
}
