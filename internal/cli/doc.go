// Package cli реализует команды инструмента командной строки конвейера.
//
// Каждая команда конструируется отдельной функцией; общая сборка
// зависимостей (конфигурация, реестр, журнал запусков, оркестратор)
// живёт в App.
package cli
