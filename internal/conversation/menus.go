package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/staffing"
)

// clockBand is a half-open menu range of day minutes. Menus list every
// 30-minute mark from From through To inclusive.
type clockBand struct {
	From int // minutes since midnight
	To   int
}

// Start-time bands. The working day opens at 08:00; afternoon starts
// after the lunch boundary.
var startBands = map[chat.ActionVerb]clockBand{
	chat.ActionStartBandMorning:   {From: 8 * 60, To: 12*60 + 30},
	chat.ActionStartBandAfternoon: {From: 13 * 60, To: 17*60 + 30},
}

// End-time bands. Entries earlier than the chosen start are filtered
// out before rendering.
var endBands = map[chat.ActionVerb]clockBand{
	chat.ActionEndBandDay:     {From: 12 * 60, To: 17*60 + 30},
	chat.ActionEndBandEvening: {From: 18 * 60, To: 21*60 + 30},
	chat.ActionEndBandNight:   {From: 22 * 60, To: 23*60 + 30},
}

// clockLabel renders day minutes as "09:00".
func clockLabel(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// parseClock reads "09:00" back into day minutes.
func parseClock(label string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(label), ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// bandTimes lists the 30-minute marks of a band, dropping anything at
// or before after (pass -1 to keep all).
func bandTimes(band clockBand, after int) []string {
	var out []string
	for m := band.From; m <= band.To; m += 30 {
		if m <= after {
			continue
		}
		out = append(out, clockLabel(m))
	}
	return out
}

func dateMenu() chat.Message {
	return chat.Menu("勤務日を選択", "どの日を希望されますか？",
		chat.Button("今日", chat.ActionDateToday),
		chat.Button("明日", chat.ActionDateTomorrow),
		chat.Button("明後日", chat.ActionDateDayAfterTomorrow),
		chat.Button("日付を指定", chat.ActionDateCustom),
	)
}

func startBandMenu() chat.Message {
	return chat.Menu("開始時間を選択", "開始時間帯を選択してください。",
		chat.Button("午前 (8:00〜12:30)", chat.ActionStartBandMorning),
		chat.Button("午後 (13:00〜17:30)", chat.ActionStartBandAfternoon),
	)
}

func startTimeMenu(band chat.ActionVerb) (chat.Message, bool) {
	b, ok := startBands[band]
	if !ok {
		return chat.Message{}, false
	}
	var actions []chat.MessageAction
	for _, label := range bandTimes(b, -1) {
		actions = append(actions, chat.Button(label, chat.ActionStartAt, label))
	}
	return chat.Menu("開始時間を選択", "開始時間を選択してください。", actions...), true
}

func endBandMenu() chat.Message {
	return chat.Menu("終了時間を選択", "終了時間帯を選択してください。",
		chat.Button("日中 (〜17:30)", chat.ActionEndBandDay),
		chat.Button("夕方 (18:00〜21:30)", chat.ActionEndBandEvening),
		chat.Button("夜間 (22:00〜23:30)", chat.ActionEndBandNight),
	)
}

// endTimeMenu renders the band's marks strictly after start. ok=false
// for an unknown band; empty=true when the band has no qualifying mark,
// in which case the caller re-prompts instead of advancing.
func endTimeMenu(band chat.ActionVerb, start string) (msg chat.Message, empty, ok bool) {
	b, found := endBands[band]
	if !found {
		return chat.Message{}, false, false
	}
	after := -1
	if m, parsed := parseClock(start); parsed {
		after = m
	}
	labels := bandTimes(b, after)
	if len(labels) == 0 {
		return chat.Message{}, true, true
	}
	var actions []chat.MessageAction
	for _, label := range labels {
		actions = append(actions, chat.Button(label, chat.ActionEndAt, label))
	}
	return chat.Menu("終了時間を選択", "終了時間を選択してください。", actions...), false, true
}

func breakMenu() chat.Message {
	return chat.Menu("休憩時間を選択", "休憩時間を選択してください。",
		chat.Button("30分", chat.ActionBreak30),
		chat.Button("60分", chat.ActionBreak60),
		chat.Button("90分", chat.ActionBreak90),
		chat.Button("120分", chat.ActionBreak120),
	)
}

func countMenu() chat.Message {
	return chat.Menu("必要人数を選択", "何名必要ですか？",
		chat.Button("1名", chat.ActionCount1),
		chat.Button("2名", chat.ActionCount2),
		chat.Button("3名以上", chat.ActionCount3),
	)
}

// detailsMenu re-offers apply/decline under the full request breakdown.
func detailsMenu(req *staffing.Request) chat.Message {
	return chat.Menu("勤務依頼の詳細", requestDetails(req),
		chat.Button("応募する", chat.ActionPharmacistApply, req.ID),
		chat.Button("辞退する", chat.ActionPharmacistDecline, req.ID),
	)
}

// applicantMenu tells the store a pharmacist applied, with accept and
// reject scoped to that (request, pharmacist) pair.
func applicantMenu(req *staffing.Request, pharmacistUserID string, appliedAt time.Time) chat.Message {
	return chat.Menu("🎉 薬剤師が応募しました！", applicantNoticeBody(appliedAt),
		chat.Button("承諾", chat.ActionConfirmAccept, req.ID, pharmacistUserID),
		chat.Button("拒否", chat.ActionConfirmReject, req.ID, pharmacistUserID),
	)
}
