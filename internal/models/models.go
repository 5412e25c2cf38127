package models

import "time"

// User представляет пользователя журнала
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Journal представляет торговый журнал (счёт) пользователя
type Journal struct {
	ID             int       `json:"id"`
	UserID         int       `json:"userId"`
	Name           string    `json:"name"`
	AccountType    string    `json:"accountType"` // "personal", "funded", "demo", ...
	InitialBalance float64   `json:"initialBalance"`
	Currency       string    `json:"currency"`
	IsActive       bool      `json:"isActive"`
	IsBlown        bool      `json:"isBlown"`
	IsPassed       bool      `json:"isPassed"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Terminal сообщает, что журнал закрыт (слит или пройден)
func (j Journal) Terminal() bool {
	return j.IsBlown || j.IsPassed
}

// Направления сделки
const (
	TradeBuy  = "buy"
	TradeSell = "sell"
)

// Trade представляет сделку в журнале
type Trade struct {
	ID                 int                 `json:"id"`
	UserID             int                 `json:"userId"`
	JournalID          int                 `json:"journalId"`
	Symbol             string              `json:"symbol"`
	Type               string              `json:"type"` // "buy" | "sell"
	EntryPrice         float64             `json:"entryPrice"`
	ExitPrice          *float64            `json:"exitPrice"`
	EntryTime          time.Time           `json:"entryTime"`
	ExitTime           *time.Time          `json:"exitTime"`
	Quantity           float64             `json:"quantity"`
	PnL                *float64            `json:"pnl"`
	PnLPercent         *float64            `json:"pnlPercent"`
	PlannedRisk        *float64            `json:"plannedRisk"`
	RMultiple          *float64            `json:"rMultiple"`
	StopLoss           *float64            `json:"stopLoss"`
	TakeProfit         *float64            `json:"takeProfit"`
	Fees               *float64            `json:"fees"`
	SetupType          string              `json:"setupType"`
	Emotions           []string            `json:"emotions"`
	ChecklistSnapshots []ChecklistSnapshot `json:"checklistSnapshots"`
	Screenshots        []string            `json:"screenshots"`
	VoiceNotes         []string            `json:"voiceNotes"`
	Notes              string              `json:"notes"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Closed сообщает, закрыта ли сделка
func (t Trade) Closed() bool {
	return t.ExitPrice != nil
}

// ClosedAt возвращает время закрытия, либо время входа для открытых сделок
func (t Trade) ClosedAt() time.Time {
	if t.ExitTime != nil {
		return *t.ExitTime
	}

	return t.EntryTime
}

// ChecklistSnapshot фиксирует состояние чек-листа на момент сделки
type ChecklistSnapshot struct {
	ChecklistID    int             `json:"checklistId"`
	Name           string          `json:"name"`
	Items          []ChecklistItem `json:"items"`
	CompletionRate float64         `json:"completionRate"`
}

// Типы чек-листов
const (
	ChecklistPre    = "pre"
	ChecklistDuring = "during"
	ChecklistPost   = "post"
	ChecklistRule   = "rule"
)

// Checklist представляет именованный упорядоченный список пунктов
type Checklist struct {
	ID             int             `json:"id"`
	UserID         int             `json:"userId"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	Items          []ChecklistItem `json:"items"`
	CompletionRate float64         `json:"completionRate"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ChecklistItem пункт чек-листа
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// SetupType пользовательский тег сетапа
type SetupType struct {
	ID          int     `json:"id"`
	UserID      int     `json:"userId"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// NoTradeDay запись о дне без сделок
type NoTradeDay struct {
	ID            int       `json:"id"`
	UserID        int       `json:"userId"`
	JournalID     *int      `json:"journalId"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Notes         string    `json:"notes"`
	ScreenshotURL *string   `json:"screenshotUrl"`
	VoiceNoteURL  *string   `json:"voiceNoteUrl"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SettingsSchemaVersion текущая версия схемы пользовательских настроек
const SettingsSchemaVersion = 2

// UserSettings настройки пользователя (один к одному с User)
type UserSettings struct {
	UserID         int         `json:"userId"`
	InitialBalance float64     `json:"initialBalance"`
	Currency       string      `json:"currency"`
	DateFormat     string      `json:"dateFormat"`
	Preferences    Preferences `json:"preferences"`
	SchemaVersion  int         `json:"schemaVersion"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Preferences типизированные предпочтения интерфейса
type Preferences struct {
	Theme             string        `json:"theme" yaml:"theme"`
	GlowIntensity     float64       `json:"glowIntensity" yaml:"glow_intensity"`
	BackgroundOpacity float64       `json:"backgroundOpacity" yaml:"background_opacity"`
	NumberPrecision   int           `json:"numberPrecision" yaml:"number_precision"`
	PnLColorScheme    string        `json:"pnlColorScheme" yaml:"pnl_color_scheme"` // "green-red" | "blue-orange"
	Notifications     Notifications `json:"notifications" yaml:"notifications"`
}

// Notifications флаги уведомлений
type Notifications struct {
	Email        bool `json:"email" yaml:"email"`
	Push         bool `json:"push" yaml:"push"`
	DailySummary bool `json:"dailySummary" yaml:"daily_summary"`

	TelegramChatID int64 `json:"telegramChatId" yaml:"telegram_chat_id"` // 0 - Telegram не привязан
}

// DailySnapshot итог торгового дня по журналу
type DailySnapshot struct {
	JournalID int       `json:"journalId"`
	Date      string    `json:"date"`
	Trades    int       `json:"trades"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	PnL       float64   `json:"pnl"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}
