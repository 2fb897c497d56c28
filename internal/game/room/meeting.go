package room

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
)

// SkipVote 弃票
const SkipVote = "skip"

// 会议原因
const (
	MeetingEmergency = "meeting"
	MeetingReport    = "report"
)

// meeting 一次会议的投票状态
type meeting struct {
	id       int
	callerID string
	reason   string
	voters   map[string]bool   // 有投票资格的玩家
	targets  map[string]bool   // 可被投票的玩家
	votes    map[string]string // voter -> target
	deadline time.Time
	cancel   context.CancelFunc
}

func (m *meeting) allVoted() bool {
	for id := range m.voters {
		if _, ok := m.votes[id]; !ok {
			return false
		}
	}
	return true
}

// removePlayer 离开房间的玩家失去投票资格，其选票作废
func (m *meeting) removePlayer(id string) {
	delete(m.voters, id)
	delete(m.targets, id)
	delete(m.votes, id)
}

func (m *meeting) remainingSeconds(now time.Time) int {
	left := m.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// Tally 计票结果
type Tally struct {
	Counts  map[string]int
	Ejected string // 为空表示无人出局
	Tie     bool
}

// CountVotes 统计选票
// 得票严格最多者出局；平票或弃票最多时无人出局
func CountVotes(votes map[string]string) Tally {
	t := Tally{Counts: make(map[string]int)}
	for _, target := range votes {
		t.Counts[target]++
	}

	best, leaders := 0, 0
	var leader string
	for target, n := range t.Counts {
		switch {
		case n > best:
			best, leaders, leader = n, 1, target
		case n == best:
			leaders++
		}
	}

	switch {
	case leaders == 0:
	case leaders > 1:
		t.Tie = true
	case leader != SkipVote:
		t.Ejected = leader
	}
	return t
}

// CallMeeting 召开紧急会议或报告尸体
type CallMeeting struct {
	PlayerID string
	Report   bool
}

func (in CallMeeting) apply(r *Room) error {
	p, err := r.livingMember(in.PlayerID, PhaseActive)
	if err != nil {
		return err
	}
	if err := r.setPhase(PhaseMeeting); err != nil {
		return err
	}

	reason := MeetingEmergency
	if in.Report {
		reason = MeetingReport
	}
	r.meetingSeq++
	ctx, cancel := context.WithCancel(r.ctx)
	m := &meeting{
		id:       r.meetingSeq,
		callerID: p.ID,
		reason:   reason,
		voters:   make(map[string]bool),
		targets:  make(map[string]bool),
		votes:    make(map[string]string),
		deadline: r.now().Add(r.settings.MeetingDuration),
		cancel:   cancel,
	}

	var voters []string
	for _, id := range r.order {
		pl := r.players[id]
		pl.Voted = false
		if pl.Alive {
			m.voters[id] = true
			m.targets[id] = true
			voters = append(voters, id)
		}
	}
	r.meeting = m

	r.broadcast(codec.MustNewMessage(protocol.MsgMeetingStarted, protocol.MeetingStartedPayload{
		CallerID: p.ID,
		Reason:   reason,
		Voters:   voters,
		Targets:  voters,
		Duration: ceilSeconds(r.settings.MeetingDuration),
	}))
	log.Info().Str("room", r.Code).Str("caller", p.ID).Str("reason", reason).Int("round", r.round).
		Msg("🚨 会议开始")

	go r.runMeetingClock(ctx, m.id, r.settings.MeetingDuration, r.settings.MeetingTick)
	r.persist()
	return nil
}

// runMeetingClock 会议倒计时，取消后不再投递任何事件
func (r *Room) runMeetingClock(ctx context.Context, id int, d, tick time.Duration) {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.post(meetingTick{meetingID: id})
		case <-deadline.C:
			r.post(meetingExpired{meetingID: id})
			return
		}
	}
}

type meetingTick struct {
	meetingID int
}

func (in meetingTick) apply(r *Room) error {
	m := r.meeting
	if m == nil || m.id != in.meetingID {
		return nil
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgMeetingTick, protocol.MeetingTickPayload{
		Remaining: m.remainingSeconds(r.now()),
	}))
	return nil
}

type meetingExpired struct {
	meetingID int
}

func (in meetingExpired) apply(r *Room) error {
	m := r.meeting
	if m == nil || m.id != in.meetingID {
		return nil
	}
	r.endMeeting("timeout")
	return nil
}

// Vote 投票
type Vote struct {
	PlayerID string
	TargetID string
}

func (in Vote) apply(r *Room) error {
	p, err := r.livingMember(in.PlayerID, PhaseMeeting)
	if err != nil {
		return err
	}
	m := r.meeting
	if !m.voters[p.ID] {
		return apperrors.ErrNotEligible
	}
	if _, voted := m.votes[p.ID]; voted {
		return apperrors.ErrAlreadyVoted
	}
	if in.TargetID != SkipVote && !m.targets[in.TargetID] {
		return apperrors.ErrInvalidTarget
	}

	m.votes[p.ID] = in.TargetID
	p.Voted = true
	r.broadcast(codec.MustNewMessage(protocol.MsgVoteRecorded, protocol.VoteRecordedPayload{VoterID: p.ID}))

	if m.allVoted() {
		r.endMeeting("all_voted")
	}
	return nil
}

// endMeeting 结束会议并计票，每场会议只会执行一次
func (r *Room) endMeeting(trigger string) {
	m := r.meeting
	if m == nil || r.phase != PhaseMeeting {
		return
	}
	m.cancel()
	r.meeting = nil
	if err := r.setPhase(PhaseResolution); err != nil {
		log.Error().Err(err).Msg("会议结算失败")
		return
	}

	t := CountVotes(m.votes)
	payload := protocol.MeetingEndedPayload{Tally: t.Counts, Tie: t.Tie}
	if ejected, ok := r.players[t.Ejected]; ok && t.Ejected != "" {
		ejected.Alive = false
		payload.EjectedID = ejected.ID
		payload.EjectedRole = string(ejected.Role)
	}
	for _, p := range r.players {
		p.Voted = false
	}

	r.broadcast(codec.MustNewMessage(protocol.MsgMeetingEnded, payload))
	log.Info().Str("room", r.Code).Str("trigger", trigger).Str("ejected", payload.EjectedID).Bool("tie", t.Tie).
		Msg("🗳️ 会议结束")

	if r.settings.ResolutionDelay <= 0 {
		r.resolve()
		return
	}
	id := m.id
	time.AfterFunc(r.settings.ResolutionDelay, func() { r.post(resolveRound{meetingID: id}) })
	r.persist()
}
