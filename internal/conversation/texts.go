package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/yakushift/staffing-platform/internal/staffing"
)

// Japanese display formats. Dates render as unpadded month/day to match
// the roster sheet headers.
const (
	displayDateLayout    = "2006/01/02"
	applyTimestampLayout = "2006/01/02 15:04"
)

var weekdayKanji = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// displayDate renders "2025/04/15" for prompts and summaries.
func displayDate(d time.Time) string {
	return d.Format(displayDateLayout)
}

// shortDate renders "4/15" the way the roster sheet headers do.
func shortDate(d time.Time) string {
	return fmt.Sprintf("%d/%d", int(d.Month()), d.Day())
}

// dateWithWeekday renders "4/15（火）" for draft labels.
func dateWithWeekday(d time.Time) string {
	return fmt.Sprintf("%s（%s）", shortDate(d), weekdayKanji[int(d.Weekday())])
}

// timeWindow renders "09:00〜18:00", or the slot label when the request
// came through the fast path without explicit times.
func timeWindow(start, end string, slot staffing.TimeSlot) string {
	if start != "" && end != "" {
		return fmt.Sprintf("%s〜%s", start, end)
	}
	return slot.Label()
}

// Fixed texts. These are the exact strings users see; tests assert on
// fragments of them, so edits here ripple.
const (
	textGenericError  = "申し訳ございません。エラーが発生しました。"
	textPostbackError = "エラーが発生しました。もう一度お試しください。"
	textUnknownAction = "不明なボタン操作です。"

	textWelcomeGuide = "🏥 薬局シフト管理Botへようこそ！\n\n" +
		"ご利用には登録が必要です。\n\n" +
		"🏪 店舗の方：\n" +
		"「店舗登録 店舗番号 店舗名」と入力してください。\n" +
		"例: 店舗登録 001 メイプル薬局\n\n" +
		"💊 薬剤師の方：\n" +
		"「薬剤師登録 名前 電話番号」と入力してください。\n" +
		"例: 薬剤師登録 田中太郎 090-1234-5678"

	textStoreWelcomeBare = "🏪 薬局シフト管理Bot（店舗版）へようこそ！\n\n" +
		"「勤務依頼」と入力して、最初の依頼を送信してください。"

	textStoreMenu = "🏪 店舗ユーザー向けメニュー\n\n" +
		"以下のコマンドが利用できます：\n\n" +
		"📋 勤務依頼の送信：\n勤務依頼\n\n" +
		"何かご不明な点がございましたら、お気軽にお声かけください。"

	textPharmacistMenu = "💊 薬剤師Botです。\n\n" +
		"以下のコマンドが利用できます：\n\n" +
		"• 薬剤師登録 - 薬剤師として登録\n" +
		"• ヘルプ - このメッセージを表示\n\n" +
		"勤務依頼が届いた場合は、ボタンから応募・辞退を行ってください。"

	textPharmacistComposeBarred = "勤務依頼の作成は店舗ユーザーのみご利用いただけます。\n" +
		"届いた依頼への応募・辞退はボタンから操作してください。"

	textCustomDatePrompt = "日付を入力してください。\n例: 4/15, 4月15日, 2024/4/15"

	textDraftMissing = "依頼内容が見つかりません。最初からやり直してください。"
	textCancelled    = "依頼をキャンセルしました。\n再度「勤務依頼」と入力して、最初からやり直してください。"

	textRegistrationError = "登録処理中にエラーが発生しました。"
	textDateStepError     = "日付選択でエラーが発生しました。"
	textTimeStepError     = "時間選択でエラーが発生しました。"
	textCountStepError    = "人数選択でエラーが発生しました。"
	textConfirmStepError  = "確定処理中にエラーが発生しました。"
	textCancelStepError   = "キャンセル処理中にエラーが発生しました。"
	textApplyStepError    = "応募処理中にエラーが発生しました。"
	textDeclineStepError  = "辞退処理中にエラーが発生しました。"
	textDetailsStepError  = "詳細確認処理中にエラーが発生しました。"

	textRequestNotFoundPrefix = "❌ 依頼情報が見つかりません。\n依頼ID: "
	textRequestNotFoundNote   = "\n\n依頼が削除されたか、期限が切れている可能性があります。"
)

// storeWelcome greets a newly registered or followed store user.
func storeWelcome(name string) string {
	if name == "" {
		return textStoreWelcomeBare
	}
	return fmt.Sprintf("🏪 %sさん、薬局シフト管理Bot（店舗版）へようこそ！\n\n"+
		"このBotは薬局の勤務依頼管理を効率化します。\n\n"+
		"📋 利用可能な機能：\n"+
		"• 勤務依頼の送信\n"+
		"• 薬剤師の自動検索・通知\n"+
		"• 応募状況の管理\n\n"+
		"「勤務依頼」と入力して、最初の依頼を送信してください。", name)
}

func pharmacistWelcome() string {
	return "💊 薬剤師Botへようこそ！\n\n" +
		"このBotは勤務依頼の受信・応募・辞退を行います。\n\n" +
		"まずは薬剤師登録を行ってください：\n" +
		"「薬剤師登録」と入力してください。"
}

func storeRegistered(name string) string {
	return fmt.Sprintf("✅ 店舗登録が完了しました！\n\n🏪 店舗名: %s\n\n"+
		"「勤務依頼」と入力して、依頼を送信してください。", name)
}

func storeRegistrationFailed(number, name string) string {
	return fmt.Sprintf("%s（%s）の登録に失敗しました。店舗番号・店舗名が正しいかご確認ください。", name, number)
}

func pharmacistRegistered(name, userID string) string {
	return fmt.Sprintf("✅ 薬剤師登録が完了しました！\n\n👤 名前: %s\n🆔 ユーザーID: %s\n\n"+
		"これで勤務依頼を受信・応募・辞退ができるようになりました。\n"+
		"依頼が届いたら、ボタンから操作してください。", name, userID)
}

func pharmacistRegistrationFailed(name string) string {
	return fmt.Sprintf("%sさんの登録に失敗しました。名前・電話番号が正しいかご確認ください。", name)
}

func dateChosen(d time.Time) string {
	return fmt.Sprintf("日付: %s\n次に開始時間を選択してください。", displayDate(d))
}

func startChosen(start string) string {
	return fmt.Sprintf("開始時間: %s\n次に終了時間を選択してください。", start)
}

func endBandEmpty(start string) string {
	return fmt.Sprintf("開始時間 %s より後の終了時間がこの時間帯にありません。\n別の時間帯を選択してください。", start)
}

func endChosen(start, end string) string {
	return fmt.Sprintf("勤務時間: %s〜%s\n次に休憩時間を選択してください。", start, end)
}

func breakChosen(minutes string) string {
	return fmt.Sprintf("休憩時間: %s分\n次に必要人数を選択してください。", minutes)
}

func slotChosen(slot staffing.TimeSlot) string {
	return fmt.Sprintf("時間帯: %s\n次に必要人数を選択してください。", slot.Label())
}

// confirmationSummary renders the draft for the final yes/no gate. Both
// the button flow and the free-text fast path land here.
func confirmationSummary(dateText, window string, count int) string {
	return fmt.Sprintf("依頼内容の確認\n"+
		"日付: %s\n"+
		"時間帯: %s\n"+
		"人数: %d名\n\n"+
		"この内容で依頼を送信しますか？\n"+
		"「はい」または「いいえ」でお答えください。", dateText, window, count)
}

func submitAccepted(req *staffing.Request) string {
	return fmt.Sprintf("✅ 依頼を確定しました！\n"+
		"依頼ID: %s\n"+
		"日付: %s\n"+
		"時間帯: %s\n"+
		"人数: %d名\n\n"+
		"薬剤師に通知を送信しました。\n"+
		"応募があったらご連絡いたします。", req.ID, req.DateText, req.Window(), req.RequiredCount)
}

func submitNoAvailability(req *staffing.Request) string {
	return fmt.Sprintf("⚠️ 依頼を確定しましたが、\n"+
		"空き薬剤師が見つかりませんでした。\n"+
		"依頼ID: %s\n"+
		"別の日時で再度お試しください。", req.ID)
}

func applyAccepted(req *staffing.Request) string {
	return fmt.Sprintf("✅ 応募を受け付けました！\n\n"+
		"🏪 店舗: %s\n"+
		"📅 日付: %s\n"+
		"⏰ 時間: %s\n\n"+
		"店舗からの確定連絡をお待ちください。\n"+
		"確定次第、詳細をお知らせいたします。", req.StoreRef, req.DateText, req.Window())
}

func applyDuplicate(requestID string) string {
	return fmt.Sprintf("この依頼にはすでに応募済みです。\n依頼ID: %s\n\n"+
		"店舗からの確定連絡をお待ちください。", requestID)
}

func declineAccepted(requestID string) string {
	return fmt.Sprintf("❌ 辞退を受け付けました。\n依頼ID: %s\n\n"+
		"ご連絡ありがとうございました。\n"+
		"またの機会をお待ちしております。", requestID)
}

func requestClosedNotice(requestID string) string {
	return fmt.Sprintf("この依頼はすでに締め切られています。\n依頼ID: %s\n\n"+
		"またの機会をお待ちしております。", requestID)
}

func requestNotFound(requestID string) string {
	return textRequestNotFoundPrefix + requestID + textRequestNotFoundNote
}

func requestDetails(req *staffing.Request) string {
	breakText := "なし"
	if req.BreakLabel != "" {
		breakText = req.BreakLabel + "分"
	}
	start := req.StartLabel
	end := req.EndLabel
	if start == "" {
		start = req.TimeSlot.Label()
	}
	if end == "" {
		end = "-"
	}
	return fmt.Sprintf("📋 勤務依頼の詳細\n"+
		"━━━━━━━━━━━━━━━━\n"+
		"🏪 店舗: %s\n"+
		"📅 日付: %s\n"+
		"⏰ 開始時間: %s\n"+
		"⏰ 終了時間: %s\n"+
		"☕ 休憩時間: %s\n"+
		"👥 必要人数: %d名\n"+
		"━━━━━━━━━━━━━━━━\n"+
		"この依頼に応募しますか？", req.StoreRef, req.DateText, start, end, breakText, req.RequiredCount)
}

// applicantNoticeBody tells the store someone applied; the accept and
// reject buttons ride on the same message.
func applicantNoticeBody(appliedAt time.Time) string {
	return fmt.Sprintf("応募日時: %s", appliedAt.Format(applyTimestampLayout))
}

func confirmedPharmacist(req *staffing.Request) string {
	return fmt.Sprintf("【勤務確定】\n%s %s %s\n勤務が確定しました。\nよろしくお願いします。",
		req.ShortDate(), req.Window(), req.StoreRef)
}

func confirmedStore(req *staffing.Request, names []string) string {
	return fmt.Sprintf("【勤務確定】\n日時: %s %s\n確定薬剤師: %s\nスケジュールに記入しました。",
		req.ShortDate(), req.Window(), strings.Join(names, "、"))
}

func closureNotice(req *staffing.Request) string {
	return fmt.Sprintf("【勤務依頼辞退】\n%s %s %s\n他の薬剤師が確定しました。\nご応募ありがとうございました。",
		req.ShortDate(), req.Window(), req.StoreRef)
}

func acceptNotApplicant(requestID string) string {
	return fmt.Sprintf("この薬剤師は依頼に応募していません。\n依頼ID: %s", requestID)
}

func alreadyConfirmedNotice(requestID string) string {
	return fmt.Sprintf("この薬剤師はすでに確定済みです。\n依頼ID: %s", requestID)
}

const textRejectAck = "拒否を受け付けました。\n該当の薬剤師にお知らせしました。"

func rejectNotice(req *staffing.Request) string {
	return closureNotice(req)
}
