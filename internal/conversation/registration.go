package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/yakushift/staffing-platform/internal/chat"
	"github.com/yakushift/staffing-platform/internal/directory"
	"github.com/yakushift/staffing-platform/internal/session"
	"github.com/yakushift/staffing-platform/internal/textparse"
)

const textStoreRegisterUsage = "🏪 店舗登録\n\n" +
	"以下の形式で登録してください：\n\n" +
	"• 店舗登録 001 メイプル薬局\n" +
	"• 店舗登録,001,メイプル薬局\n\n" +
	"店舗番号と店舗名を入力してください。"

const textPharmacistRegisterUsage = "💊 薬剤師登録\n\n" +
	"以下の形式で登録してください：\n\n" +
	"• 薬剤師登録 田中太郎 090-1234-5678\n" +
	"• 薬剤師登録,田中太郎,090-1234-5678\n\n" +
	"名前と電話番号を入力してください。"

// handleRegistration intercepts the fixed registration prefixes for
// any role, so an already registered user can re-bind a new chat id.
// Returns true when the message was a registration command.
func (e *Engine) handleRegistration(ctx context.Context, ev chat.Event, text string) bool {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, textparse.PharmacistRegistrationPrefix):
		if reg, ok := textparse.ParsePharmacistRegistration(text); ok {
			e.registerPharmacist(ctx, ev, reg)
		} else {
			e.reply(ctx, ev, chat.Text(textPharmacistRegisterUsage))
		}
		return true
	case strings.HasPrefix(trimmed, textparse.StoreRegistrationPrefix):
		if reg, ok := textparse.ParseStoreRegistration(text); ok {
			e.registerStore(ctx, ev, reg)
		} else {
			e.reply(ctx, ev, chat.Text(textStoreRegisterUsage))
		}
		return true
	}
	return false
}

// registerStore binds the chat user to a roster row by store number
// and name. A row must already exist; registration never creates one.
func (e *Engine) registerStore(ctx context.Context, ev chat.Event, reg *textparse.StoreRegistration) {
	err := e.directory.RegisterStore(ctx, reg.Number, reg.Name, ev.UserID)
	switch {
	case errors.Is(err, directory.ErrIdentityNotFound):
		e.reply(ctx, ev, chat.Text(storeRegistrationFailed(reg.Number, reg.Name)))
		return
	case err != nil:
		e.failStep(ctx, ev, textRegistrationError, err)
		return
	}
	if err := e.sessions.SetRole(ctx, ev.UserID, session.RoleStore); err != nil {
		e.log.Warn("conversation: role cache failed", "error", err, "user_id", ev.UserID)
	}
	e.log.Info("store registered", "user_id", ev.UserID, "store", reg.Name)
	e.reply(ctx, ev, chat.Text(storeRegistered(reg.Name)))
}

func (e *Engine) registerPharmacist(ctx context.Context, ev chat.Event, reg *textparse.PharmacistRegistration) {
	err := e.directory.RegisterPharmacist(ctx, reg.Name, reg.Phone, ev.UserID)
	switch {
	case errors.Is(err, directory.ErrIdentityNotFound):
		e.reply(ctx, ev, chat.Text(pharmacistRegistrationFailed(reg.Name)))
		return
	case err != nil:
		e.failStep(ctx, ev, textRegistrationError, err)
		return
	}
	if err := e.sessions.SetRole(ctx, ev.UserID, session.RolePharmacist); err != nil {
		e.log.Warn("conversation: role cache failed", "error", err, "user_id", ev.UserID)
	}
	e.log.Info("pharmacist registered", "user_id", ev.UserID, "name", reg.Name)
	e.reply(ctx, ev, chat.Text(pharmacistRegistered(reg.Name, ev.UserID)))
}
