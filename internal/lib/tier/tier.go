// Package tier содержит чистые функции для вычисления прав доступа по уровню
// подписки: матрицу feature × tier, правило бесплатных стран и таблицу лимитов
// для тарифицируемых функций. Пакет не имеет побочных эффектов и не обращается
// к хранилищу, поэтому его можно безопасно вызывать из любого пути обработки.
package tier

// Tier представляет уровень подписки пользователя.
type Tier string

// Уровни подписки. Guest строго ниже Free: часть функций запрещена гостю
// независимо от содержимого матрицы.
const (
	Guest    Tier = "guest"
	Free     Tier = "free"
	Personal Tier = "personal"
	Pro      Tier = "pro"
)

// SubscriptionType представляет периодичность оплаты подписки.
type SubscriptionType string

// Типы подписки, выводимые из product_id биллингового события.
const (
	SubFree    SubscriptionType = "free"
	SubWeekly  SubscriptionType = "weekly"
	SubMonthly SubscriptionType = "monthly"
	SubYearly  SubscriptionType = "yearly"
)

// Feature представляет функцию приложения, доступ к которой зависит от тарифа.
type Feature string

// Функции, закрытые матрицей доступа.
const (
	FeatureNutrition Feature = "nutrition"
	FeatureOffline   Feature = "offline"
	FeatureTravel    Feature = "travel"
	FeatureBaby      Feature = "baby"
	FeatureWallet    Feature = "wallet"
	FeaturePlanner   Feature = "planner"
)

// Meter представляет тарифицируемую функцию с дневным лимитом вызовов.
type Meter string

// Тарифицируемые функции.
const (
	MeterAI     Meter = "ai"
	MeterTravel Meter = "travel"
)

// accessMatrix — единственный источник истины для проверки доступа.
// Никакой вызывающий код не должен дублировать эти правила.
var accessMatrix = map[Feature]map[Tier]bool{
	FeatureNutrition: {Personal: true, Pro: true},
	FeatureOffline:   {Pro: true},
	FeatureTravel:    {Personal: true, Pro: true},
	FeatureBaby:      {Pro: true},
	FeatureWallet:    {Personal: true, Pro: true},
	FeaturePlanner:   {Personal: true, Pro: true},
}

// guestDenied — функции, запрещённые гостю безусловно, даже если матрица
// когда-нибудь их откроет.
var guestDenied = map[Feature]bool{
	FeatureWallet:  true,
	FeaturePlanner: true,
	FeatureOffline: true,
	FeatureTravel:  true,
	FeatureBaby:    true,
}

// dailyLimits — дневные лимиты тарифицируемых функций по тарифам.
var dailyLimits = map[Meter]map[Tier]int{
	MeterAI: {
		Guest:    0,
		Free:     3,
		Personal: 20,
		Pro:      9999,
	},
	MeterTravel: {
		Guest:    0,
		Free:     0,
		Personal: 5,
		Pro:      9999,
	},
}

// freeCountries — страны, доступные бесплатно любому тарифу.
// Всё, чего нет в списке, требует personal/pro или разблокировки за рекламу.
var freeCountries = map[string]bool{
	"United States":  true,
	"Canada":         true,
	"United Kingdom": true,
	"Spain":          true,
	"Greece":         true,
	"Turkey":         true,
	"Egypt":          true,
	"Morocco":        true,
	"Brazil":         true,
	"Argentina":      true,
	"Jamaica":        true,
	"Portugal":       true,
	"Poland":         true,
	"Russia":         true,
	"Kenya":          true,
	"Philippines":    true,
	"Malaysia":       true,
	"Australia":      true,
	"Ireland":        true,
	"Croatia":        true,
}

// CanAccessFeature сообщает, доступна ли функция на данном тарифе.
// Для гостя сначала применяется безусловный запрет guestDenied.
func CanAccessFeature(t Tier, f Feature) bool {
	if t == Guest && guestDenied[f] {
		return false
	}
	return accessMatrix[f][t]
}

// IsFreeCountry сообщает, входит ли страна в бесплатный список.
func IsFreeCountry(country string) bool {
	return freeCountries[country]
}

// IsCountryUnlocked сообщает, доступна ли страна пользователю.
// Personal и Pro видят всё; остальные — бесплатный список плюс страны,
// разблокированные за просмотр рекламы.
func IsCountryUnlocked(t Tier, country string, unlocked []string) bool {
	if t == Personal || t == Pro {
		return true
	}
	if freeCountries[country] {
		return true
	}
	for _, c := range unlocked {
		if c == country {
			return true
		}
	}
	return false
}

// DailyLimit возвращает дневной лимит тарифицируемой функции для тарифа.
func DailyLimit(t Tier, m Meter) int {
	return dailyLimits[m][t]
}

// ParseTier проверяет строковое значение тарифа. Неизвестное значение
// трактуется как Free — безопасный нижний уровень для аутентифицированного
// пользователя.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case Guest, Free, Personal, Pro:
		return Tier(s)
	default:
		return Free
	}
}
