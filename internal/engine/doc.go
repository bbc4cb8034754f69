// Package engine содержит чистые функции над графом и песочницу выражений.
//
// Включает:
//   - dag.go      — топологическая сортировка (алгоритм Кана), корневые узлы, достижимость
//   - validate.go — структурная проверка графа для редактора и API
//   - eval.go     — вычисление выражений transform/decision (синтаксис HCL, функции go-cty)
//   - convert.go  — перевод значений между Go и cty
//
// Пакет не хранит состояния, все функции можно вызывать из нескольких движков одновременно.
//
// # Выражения
//
// Выражению видны только две переменные:
//
//	input — вход узла (выход предыдущего узла)
//	data  — настройки узла
//
// Примеры:
//
//	input.x + 1
//	input.value > 10 && data.enabled
//	upper(input.name)
//	[for item in input.items : item.price if item.price > 0]
//
// Обращение к любому другому имени — ошибка, а не пустое значение.
package engine
