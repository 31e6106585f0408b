// Package fuzztests houses Go fuzz harnesses for the IR readers: the
// textual parser and the binary container decoder. Its goal is to guard
// against panics and hangs on arbitrary inputs and to check that every
// module the parser accepts prints back to text that parses the same.
//
// Назначение: прогонять произвольные байты через irtext и irbin.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
package fuzztests
