// Package mq публикует события симуляций в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением
//   - topology.go   — обменник flowgraph.events (topic) и ключи маршрутизации
//   - publisher.go  — Publisher, получатель событий оркестратора
//   - consumer.go   — Subscriber для `flowgraph events tail`
//
// Ключ маршрутизации: "<тип события>.<simulation_id>", например
// "simulation.step.<id>". Подписка на все шаги: "simulation.step.*".
package mq
