// Package scheduler работает с расписанием trigger-узлов.
//
// Trigger может нести поле schedule с cron-выражением (пять полей или
// дескриптор вроде @hourly). Симуляция не ждёт расписания: выражение
// проверяется при валидации узла, а ближайшее срабатывание
// попадает в выход trigger как nextRun.
package scheduler
