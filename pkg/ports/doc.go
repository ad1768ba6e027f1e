/*
Package ports defines the driven ports (interfaces) of the harness.

The harness never talks to a compiler or a runtime directly; it goes
through these interfaces so the core logic can be exercised with fakes.

# Key Interfaces

  - Toolchain: compiles an Extension and reports the files it produced.
  - Host: the runtime modules are loaded into, made of a ModuleTable
    (process-wide name -> module map), a SearchPath and an Import operation.
  - CapabilityReporter: optional self-description of a Host.
  - DistributedLocker: cross-process mutual exclusion for builds that share
    an output directory.
*/
package ports
