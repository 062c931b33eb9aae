// Package navigator drives a robot from an unknown starting pose to the
// origin. It knows nothing about the wire protocol or sockets: it
// consumes acknowledged coordinates and produces the next command to
// issue, entirely in terms of the grid package's types.
package navigator

import (
	"github.com/sxccxs/robot-server/internal/grid"
	"github.com/sxccxs/robot-server/internal/protoerr"
)

// Command is one of the four instructions the navigator can emit.
type Command int

const (
	CmdMove Command = iota
	CmdTurnLeft
	CmdTurnRight
	CmdPickUp
)

func (c Command) String() string {
	switch c {
	case CmdMove:
		return "MOVE"
	case CmdTurnLeft:
		return "TURN LEFT"
	case CmdTurnRight:
		return "TURN RIGHT"
	case CmdPickUp:
		return "PICK UP"
	default:
		return "UNKNOWN"
	}
}

// Navigator holds the hidden-state belief (position, heading) and the
// step/obstacle budgets for one session's navigation to the origin.
type Navigator struct {
	pos         grid.Point
	posKnown    bool
	heading     grid.Heading
	headingKnown bool

	stepsRemaining  int
	obstacleHits    int
	maxObstacleHits int

	queue   []Command
	lastCmd Command
	done    bool
}

// New returns a Navigator with the given step and obstacle-hit budgets.
func New(maxSteps, maxObstacleHits int) *Navigator {
	return &Navigator{stepsRemaining: maxSteps, maxObstacleHits: maxObstacleHits}
}

// Start returns the first command to issue: a forward move probing for
// the starting position.
func (n *Navigator) Start() Command {
	n.lastCmd = CmdMove
	return CmdMove
}

// Position reports the navigator's current belief of position.
func (n *Navigator) Position() (grid.Point, bool) { return n.pos, n.posKnown }

// Heading reports the navigator's current belief of heading.
func (n *Navigator) Heading() (grid.Heading, bool) { return n.heading, n.headingKnown }

// StepsRemaining reports the forward-move budget left.
func (n *Navigator) StepsRemaining() int { return n.stepsRemaining }

// ObstacleHits reports the number of failed forward moves so far.
func (n *Navigator) ObstacleHits() int { return n.obstacleHits }

// Feed processes the acknowledgement for the command last returned by
// Start or Feed, and returns the next command to issue. It returns
// protoerr.ErrExhaustion once the obstacle-hit budget is exceeded or the
// step budget reaches zero without reaching the origin. It must not be
// called again once it has returned CmdPickUp.
func (n *Navigator) Feed(ack grid.Point) (Command, error) {
	if n.done {
		return 0, protoerr.ErrExhaustion
	}

	switch {
	case !n.posKnown:
		n.pos = ack
		n.posKnown = true
		n.lastCmd = CmdMove
		return CmdMove, nil

	case !n.headingKnown:
		return n.feedPoseProbe(ack)

	default:
		return n.feedPlanning(ack)
	}
}

func (n *Navigator) feedPoseProbe(ack grid.Point) (Command, error) {
	switch n.lastCmd {
	case CmdTurnRight:
		n.lastCmd = CmdMove
		return CmdMove, nil

	case CmdMove:
		if ack == n.pos {
			n.obstacleHits++
			if err := n.checkObstacleBudget(); err != nil {
				return 0, err
			}
			n.lastCmd = CmdTurnRight
			return CmdTurnRight, nil
		}

		heading, ok := grid.HeadingFromDelta(n.pos, ack)
		if !ok {
			return 0, protoerr.ErrSyntax
		}
		n.heading = heading
		n.headingKnown = true
		n.pos = ack
		n.stepsRemaining--
		return n.afterSuccessfulMove()

	default:
		return 0, protoerr.ErrExhaustion
	}
}

func (n *Navigator) feedPlanning(ack grid.Point) (Command, error) {
	switch n.lastCmd {
	case CmdMove:
		if ack == n.pos {
			n.obstacleHits++
			if err := n.checkObstacleBudget(); err != nil {
				return 0, err
			}
			n.queue = append(bypassCommands(), n.queue...)
			return n.nextFromQueueOrPlan()
		}
		n.pos = ack
		n.stepsRemaining--
		return n.afterSuccessfulMove()

	case CmdTurnLeft:
		n.heading = n.heading.TurnLeft()
		return n.nextFromQueueOrPlan()

	case CmdTurnRight:
		n.heading = n.heading.TurnRight()
		return n.nextFromQueueOrPlan()

	default:
		return 0, protoerr.ErrExhaustion
	}
}

func (n *Navigator) afterSuccessfulMove() (Command, error) {
	if n.pos == grid.Origin {
		n.queue = nil
		n.lastCmd = CmdPickUp
		n.done = true
		return CmdPickUp, nil
	}
	if n.stepsRemaining == 0 {
		return 0, protoerr.ErrExhaustion
	}
	return n.nextFromQueueOrPlan()
}

func (n *Navigator) nextFromQueueOrPlan() (Command, error) {
	if len(n.queue) == 0 {
		n.queue = planChunk(n.pos, n.heading)
	}
	cmd := n.queue[0]
	n.queue = n.queue[1:]
	n.lastCmd = cmd
	return cmd, nil
}

func (n *Navigator) checkObstacleBudget() error {
	if n.obstacleHits > n.maxObstacleHits {
		return protoerr.ErrExhaustion
	}
	return nil
}

// planChunk orients from heading toward the axis-aligned direction that
// reduces |x| (if nonzero) or else |y|, then moves one cell.
func planChunk(pos grid.Point, heading grid.Heading) []Command {
	desired := desiredHeading(pos)
	chunk := append(turnsToward(heading, desired), CmdMove)
	return chunk
}

func desiredHeading(pos grid.Point) grid.Heading {
	switch {
	case pos.X > 0:
		return grid.West
	case pos.X < 0:
		return grid.East
	case pos.Y > 0:
		return grid.South
	default:
		return grid.North
	}
}

// turnsToward returns the minimal turn sequence from current to desired,
// always using two TURN RIGHTs (never two TURN LEFTs) for a 180°.
func turnsToward(current, desired grid.Heading) []Command {
	diff := (int(desired) - int(current) + 4) % 4
	switch diff {
	case 1:
		return []Command{CmdTurnRight}
	case 2:
		return []Command{CmdTurnRight, CmdTurnRight}
	case 3:
		return []Command{CmdTurnLeft}
	default:
		return nil
	}
}

// bypassCommands is the canonical obstacle bypass: route one cell
// perpendicular, advance, rejoin, restoring the original heading.
func bypassCommands() []Command {
	return []Command{CmdTurnRight, CmdMove, CmdTurnLeft, CmdMove, CmdTurnLeft, CmdMove, CmdTurnRight}
}
