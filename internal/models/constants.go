package models

const (
	GlimpseOK       = "ok"
	GlimpseNoSlots  = "no_slots"
	GlimpseNotFound = "not_found"
)

const (
	// CampusLabel кампус, к которому относятся все помещения
	CampusLabel = "Main Campus"

	// DefaultBusinessStart начало окна поиска слотов
	DefaultBusinessStart = "08:00"
	// DefaultBusinessEnd конец окна поиска слотов
	DefaultBusinessEnd = "22:00"

	// DefaultSlotDuration длительность слота в минутах
	DefaultSlotDuration = 60
	// DefaultSlotStep шаг перебора слотов в минутах
	DefaultSlotStep = 60

	// DefaultGlimpseLimit количество слотов на помещение по умолчанию
	DefaultGlimpseLimit = 3
	// MaxGlimpseLimit верхняя граница количества слотов
	MaxGlimpseLimit = 6

	// DefaultPageSize размер страницы каталога по умолчанию
	DefaultPageSize = 12
	// MaxPageSize максимальный размер страницы каталога
	MaxPageSize = 50

	// EventQueueSize размер очереди воркера событий
	EventQueueSize = 100
)
