package bridge

import (
	"time"

	"github.com/google/uuid"
)

// TrajectoryType is the ROS message type published by the bridge.
const TrajectoryType = "trajectory_msgs/JointTrajectory"

// Duration is the ROS duration representation used by rosbridge.
type Duration struct {
	Secs  int32 `json:"secs"`
	Nsecs int32 `json:"nsecs"`
}

// NewDuration splits d into seconds and nanoseconds.
func NewDuration(d time.Duration) Duration {
	return Duration{
		Secs:  int32(d / time.Second),
		Nsecs: int32(d % time.Second),
	}
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.Secs)*time.Second + time.Duration(d.Nsecs)
}

// JointTrajectoryPoint is one waypoint.
type JointTrajectoryPoint struct {
	Positions     []float64 `json:"positions"`
	Velocities    []float64 `json:"velocities"`
	Accelerations []float64 `json:"accelerations"`
	Effort        []float64 `json:"effort"`
	TimeFromStart Duration  `json:"time_from_start"`
}

// JointTrajectory mirrors trajectory_msgs/JointTrajectory without the header.
type JointTrajectory struct {
	JointNames []string               `json:"joint_names"`
	Points     []JointTrajectoryPoint `json:"points"`
}

// NewTrajectory builds a single-point trajectory reaching positions after
// timeFromStart. Velocities are left empty so the controller interpolates.
func NewTrajectory(jointNames []string, positions []float64, timeFromStart time.Duration) JointTrajectory {
	return JointTrajectory{
		JointNames: jointNames,
		Points: []JointTrajectoryPoint{{
			Positions:     positions,
			Velocities:    []float64{},
			Accelerations: []float64{},
			Effort:        []float64{},
			TimeFromStart: NewDuration(timeFromStart),
		}},
	}
}

// rosbridge v2 protocol operations
type advertiseOp struct {
	Op    string `json:"op"`
	ID    string `json:"id"`
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

type unadvertiseOp struct {
	Op    string `json:"op"`
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

type publishOp struct {
	Op    string          `json:"op"`
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	Msg   JointTrajectory `json:"msg"`
}

func opID(op string) string {
	return op + ":" + uuid.NewString()
}
